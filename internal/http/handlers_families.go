package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"budgetsim/internal/core"
)

func (s *Server) handleListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := s.reader.ListFamilies(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(families).Write(w)
}

// handleGetFamily answers with a one-element list, the shape existing
// clients index into.
func (s *Server) handleGetFamily(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	f, err := s.reader.GetFamily(r.Context(), id)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data([]core.Family{*f}).Write(w)
}

func (s *Server) handleSearchFamilies(w http.ResponseWriter, r *http.Request) {
	name := sanitizeInput(r.PathValue("name"))
	if name == "" {
		BadRequestError("Family name is required").Write(w)
		return
	}
	families, err := s.reader.FindFamiliesByName(r.Context(), name)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(families).Write(w)
}

// familyAliases are legacy split misc columns folded into misc on create.
type familyAliases struct {
	MiscBank        decimal.Decimal `json:"misc_bank"`
	MiscSupercenter decimal.Decimal `json:"misc_supercenter"`
}

// handleCreateFamily registers a household and answers with the full list.
// Balances and bills can only be set here; afterwards they move through the
// transaction endpoints.
func (s *Server) handleCreateFamily(w http.ResponseWriter, r *http.Request) {
	p, err := ParseRequestBody(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	var f core.Family
	if err := p.Decode(&f); err != nil {
		FromError(r, err).Write(w)
		return
	}
	var aliases familyAliases
	if err := p.Decode(&aliases); err != nil {
		FromError(r, err).Write(w)
		return
	}
	f.ID = 0
	f.Name = sanitizeInput(f.Name)
	f.Misc = f.Misc.Add(aliases.MiscBank).Add(aliases.MiscSupercenter)
	f.FoodWeek1Paid, f.FoodWeek2Paid, f.FoodWeek3Paid, f.FoodWeek4Paid = false, false, false, false

	if _, err := s.ledger.CreateFamily(r.Context(), f); err != nil {
		FromError(r, err).Write(w)
		return
	}
	s.writeFamilies(w, r, http.StatusCreated)
}

func (s *Server) handleDeleteFamily(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if err := s.ledger.DeleteFamily(r.Context(), id); err != nil {
		FromError(r, err).Write(w)
		return
	}
	s.writeFamilies(w, r, http.StatusOK)
}

func (s *Server) writeFamilies(w http.ResponseWriter, r *http.Request, status int) {
	families, err := s.reader.ListFamilies(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(status).Data(families).Write(w)
}
