package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/ledger"
	"github.com/mcclellann/ikimina/pkg/models"
	"github.com/mcclellann/ikimina/pkg/report"
	"github.com/shopspring/decimal"
)

func (s *Server) listContributionsHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	memberID, err := queryID(r, "member_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contributions, err := s.ledger.ListContributions(r.Context(), identity(r), gid, memberID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, contributions)
}

func (s *Server) recordContributionHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		MemberID uuid.UUID        `json:"member_id"`
		Amount   *decimal.Decimal `json:"amount"`
		DueDate  string           `json:"due_date"`
		Paid     bool             `json:"paid"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	due, err := parseDate("due_date", req.DueDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	c, err := s.ledger.RecordContribution(r.Context(), identity(r), gid, ledger.ContributionRequest{
		MemberID: req.MemberID,
		Amount:   req.Amount,
		DueDate:  due,
		Paid:     req.Paid,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, c)
}

func (s *Server) payContributionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.ledger.MarkContributionPaid(r.Context(), identity(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

func (s *Server) contributionStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Status models.ContributionStatus `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.ledger.SetContributionStatus(r.Context(), identity(r), id, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	borrowerID, err := queryID(r, "borrower_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter := ledger.LoanFilter{
		Status:     models.LoanStatus(r.URL.Query().Get("status")),
		BorrowerID: borrowerID,
	}
	loans, err := s.ledger.ListLoans(r.Context(), identity(r), gid, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, loans)
}

// createLoanHandler issues a loan. Admins pass "approve": true to create it
// active; members submit pending requests for themselves.
func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		BorrowerID     uuid.UUID        `json:"borrower_id"`
		Principal      decimal.Decimal  `json:"principal_amount"`
		InterestRate   *decimal.Decimal `json:"interest_rate"`
		DurationMonths int              `json:"duration_months"`
		StartDate      string           `json:"start_date"`
		Approve        bool             `json:"approve"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id := identity(r)
	borrower := req.BorrowerID
	if borrower == uuid.Nil && !req.Approve {
		borrower = id.MemberID
	}

	loan, err := s.ledger.CreateLoan(r.Context(), id, gid, ledger.LoanRequest{
		BorrowerID:     borrower,
		Principal:      req.Principal,
		InterestRate:   req.InterestRate,
		DurationMonths: req.DurationMonths,
		StartDate:      start,
	}, req.Approve)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, loan)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loan, err := s.ledger.GetLoan(r.Context(), identity(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, loan)
}

func (s *Server) approveLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loan, err := s.ledger.ApproveLoan(r.Context(), identity(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, loan)
}

func (s *Server) rejectLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ledger.RejectLoan(r.Context(), identity(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listRepaymentsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	repayments, err := s.ledger.ListRepayments(r.Context(), identity(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, repayments)
}

func (s *Server) recordRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		PaymentDate string          `json:"payment_date"`
		Notes       string          `json:"notes"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	paid, err := parseDate("payment_date", req.PaymentDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	repayment, loan, err := s.ledger.RecordRepayment(r.Context(), identity(r), id, ledger.RepaymentRequest{
		Amount:      req.Amount,
		PaymentDate: paid,
		Notes:       req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"repayment": repayment, "loan": loan})
}

func (s *Server) fundsHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	available, err := s.ledger.GroupFunds(r.Context(), identity(r), gid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"group_id": gid, "available_funds": available})
}

// monthlyReportHandler serves the monthly report as JSON, CSV or XLSX,
// selected by ?format=. Without ?year= the ledger picks the current year.
func (s *Server) monthlyReportHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var year int
	if v := r.URL.Query().Get("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: year must be a number", ledger.ErrValidation))
			return
		}
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format != "" && format != "json" && format != "csv" && format != "xlsx" {
		s.writeError(w, r, fmt.Errorf("%w: unknown format %q", ledger.ErrValidation, format))
		return
	}

	rep, err := s.ledger.MonthlyReport(r.Context(), identity(r), gid, year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename="+report.Filename(rep, "csv"))
		if err := report.WriteCSV(w, rep); err != nil {
			s.log.Error("failed to write csv report", "group_id", gid, "error", err)
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+report.Filename(rep, "xlsx"))
		if err := report.WriteXLSX(w, rep); err != nil {
			s.log.Error("failed to write xlsx report", "group_id", gid, "error", err)
		}
	default:
		respond(w, http.StatusOK, rep)
	}
}
