package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"budgetsim/internal/core"
	"budgetsim/internal/ledger"
)

// handleListPeople lists everybody, or one family's members with ?family_id=.
func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	var familyID int64
	if v := sanitizeInput(r.URL.Query().Get("family_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			BadRequestError("Invalid family_id").Write(w)
			return
		}
		familyID = id
	}
	people, err := s.reader.ListPeople(r.Context(), familyID)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(people).Write(w)
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	p, err := s.reader.GetPerson(r.Context(), id)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data([]core.Person{*p}).Write(w)
}

// weekPayKey is the JSON field carrying the scheduled pay for week w.
func weekPayKey(w int) string { return fmt.Sprintf("Week%dPay", w) }

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	body, err := ParseRequestBody(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	familyID, err := body.ID("family_id")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	p := core.Person{
		FirstName: body.String("first_name"),
		LastName:  body.String("last_name"),
		FamilyID:  familyID,
	}
	pay, err := readWeekPay(body, [core.WeeksPerPeriod]decimal.Decimal{})
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	p.Week1Pay, p.Week2Pay, p.Week3Pay, p.Week4Pay = pay[0], pay[1], pay[2], pay[3]

	created, err := s.ledger.CreatePerson(r.Context(), p)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	s.writePeople(w, r, http.StatusCreated, created.FamilyID)
}

// handleUpdatePerson edits name and pay schedule. Omitted fields keep their
// current value; paid-flags and status are not editable here.
func (s *Server) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	body, err := ParseRequestBody(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	current, err := s.reader.GetPerson(r.Context(), id)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	profile := ledger.PersonProfile{FirstName: current.FirstName, LastName: current.LastName}
	if body.Has("first_name") {
		profile.FirstName = body.String("first_name")
	}
	if body.Has("last_name") {
		profile.LastName = body.String("last_name")
	}
	existing := [core.WeeksPerPeriod]decimal.Decimal{current.Week1Pay, current.Week2Pay, current.Week3Pay, current.Week4Pay}
	if profile.WeekPay, err = readWeekPay(body, existing); err != nil {
		FromError(r, err).Write(w)
		return
	}

	updated, err := s.ledger.UpdatePerson(r.Context(), id, profile)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	s.writePeople(w, r, http.StatusOK, updated.FamilyID)
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if err := s.ledger.DeletePerson(r.Context(), id); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data([]core.Person{}).Write(w)
}

func readWeekPay(body *RequestBodyParser, fallback [core.WeeksPerPeriod]decimal.Decimal) ([core.WeeksPerPeriod]decimal.Decimal, error) {
	out := fallback
	for w := 1; w <= core.WeeksPerPeriod; w++ {
		v, err := body.OptionalAmount(weekPayKey(w), fallback[w-1])
		if err != nil {
			return out, err
		}
		out[w-1] = v
	}
	return out, nil
}

func (s *Server) writePeople(w http.ResponseWriter, r *http.Request, status int, familyID int64) {
	people, err := s.reader.ListPeople(r.Context(), familyID)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(status).Data(people).Write(w)
}
