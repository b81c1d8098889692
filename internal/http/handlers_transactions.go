package http

import (
	"net/http"
)

// The transaction handlers only translate JSON to ledger calls. Every rule
// lives in the ledger, so a rejected request never reaches the store.

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
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
	amount, err := body.Amount("amount")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	f, err := s.ledger.Deposit(r.Context(), familyID, amount)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(f).Write(w)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
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
	amount, err := body.Amount("amount")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	f, err := s.ledger.Withdraw(r.Context(), familyID, amount)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(f).Write(w)
}

// handlePayBill accepts an optional week, used only by the food bill.
func (s *Server) handlePayBill(w http.ResponseWriter, r *http.Request) {
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
	amount, err := body.Amount("amount")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	week, err := body.Int("week")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	f, err := s.ledger.PayBill(r.Context(), familyID, body.String("bill_type"), amount, week)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(f).Write(w)
}

// handlePayEmployee answers with {"data": {"family": ..., "person": ...}}.
func (s *Server) handlePayEmployee(w http.ResponseWriter, r *http.Request) {
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
	personID, err := body.ID("person_id")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	week, err := body.Int("week")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	amount, err := body.Amount("amount")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	payroll, err := s.ledger.PayEmployee(r.Context(), familyID, personID, week, amount)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(payroll).Write(w)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	body, err := ParseRequestBody(r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	personID, err := body.ID("person_id")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	value, err := body.Bool("value")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	p, err := s.ledger.SetPersonStatus(r.Context(), personID, body.String("status"), value)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(p).Write(w)
}
