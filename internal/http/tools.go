package http

import (
	"net/http"

	"expenseledger/internal/core"
	applog "expenseledger/internal/log"
)

// Tool describes one callable operation.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var tools = []Tool{
	{Name: "add_expense", Description: "Add a new expense entry to the ledger."},
	{Name: "list_expenses", Description: "List expense entries within an inclusive date range."},
	{Name: "summarize", Description: "Summarize expenses by category within an inclusive date range."},
	{Name: "delete_expenses", Description: "Delete every expense entry matching all given fields."},
	{Name: "update", Description: "Edit the provided fields of an expense entry."},
}

type (
	// expenseRequest is shared by add_expense and delete_expenses.
	expenseRequest struct {
		Date        *string  `json:"date"`
		Amount      *float64 `json:"amount"`
		Category    *string  `json:"category"`
		Subcategory string   `json:"subcategory"`
		Note        string   `json:"note"`
	}

	rangeRequest struct {
		StartDate *string `json:"start_date"`
		EndDate   *string `json:"end_date"`
	}

	summarizeRequest struct {
		rangeRequest
		Category string `json:"category"`
	}

	updateRequest struct {
		ID *int64 `json:"id"`
		core.ExpenseUpdate
	}
)

func (r expenseRequest) validate() error {
	return missingFields(map[string]bool{
		"date":     r.Date != nil,
		"amount":   r.Amount != nil,
		"category": r.Category != nil,
	})
}

func (r expenseRequest) expense() core.Expense {
	return core.Expense{
		Date:        *r.Date,
		Amount:      *r.Amount,
		Category:    *r.Category,
		Subcategory: r.Subcategory,
		Note:        r.Note,
	}
}

func (r rangeRequest) validate() error {
	return missingFields(map[string]bool{
		"start_date": r.StartDate != nil,
		"end_date":   r.EndDate != nil,
	})
}

func (r updateRequest) validate() error {
	return missingFields(map[string]bool{"id": r.ID != nil})
}

// decodeTool decodes and validates a tool request, writing a 400 on failure.
func (s *Server) decodeTool(w http.ResponseWriter, r *http.Request, tool string, dst interface{ validate() error }) bool {
	err := decodeBody(w, r, dst)
	if err == nil {
		err = dst.validate()
	}
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Invalid tool request",
			applog.FieldTool, tool,
			applog.FieldError, err.Error(),
			applog.FieldErrorType, applog.ErrorTypeValidation)
		writeJSON(w, http.StatusBadRequest, invalidRequest(err.Error()))
		return false
	}
	return true
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !s.decodeTool(w, r, "add_expense", &req) {
		return
	}
	writeResult(w, s.ledger.AddExpense(r.Context(), req.expense()))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if !s.decodeTool(w, r, "list_expenses", &req) {
		return
	}
	writeResult(w, s.ledger.ListExpenses(r.Context(), *req.StartDate, *req.EndDate))
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !s.decodeTool(w, r, "summarize", &req) {
		return
	}
	writeResult(w, s.ledger.Summarize(r.Context(), *req.StartDate, *req.EndDate, req.Category))
}

func (s *Server) handleDeleteExpenses(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !s.decodeTool(w, r, "delete_expenses", &req) {
		return
	}
	writeResult(w, s.ledger.DeleteExpenses(r.Context(), req.expense()))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !s.decodeTool(w, r, "update", &req) {
		return
	}
	writeResult(w, s.ledger.UpdateExpense(r.Context(), *req.ID, req.ExpenseUpdate))
}
