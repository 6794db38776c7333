package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/martabakCode/lofi-backend-sub001/internal/adapter/middleware"
	domain "github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"
	"github.com/martabakCode/lofi-backend-sub001/internal/usecase/loan"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type LoanHandler struct {
	uc  *loan.Usecase
	log *slog.Logger
}

func NewLoanHandler(uc *loan.Usecase, log *slog.Logger) *LoanHandler {
	if log == nil {
		log = slog.Default()
	}
	return &LoanHandler{uc: uc, log: log}
}

// Register mounts the loan and customer routes on g.
func (h *LoanHandler) Register(g *echo.Group) {
	g.POST("/loans", h.Apply)
	g.GET("/loans/:loan_id", h.GetLoan)
	g.GET("/loans/:loan_id/history", h.History)
	g.POST("/loans/:loan_id/:action", h.Transition)
	g.GET("/customers/:customer_id/loans", h.ListByCustomer)
	g.GET("/customers/:customer_id/availability", h.Availability)
	g.GET("/customers/:customer_id/active-loans", h.ActiveLoans)
}

type applyLoanReq struct {
	CustomerID string `json:"customer_id" validate:"omitempty,entityid"`
	ProductID  string `json:"product_id"  validate:"required,entityid"`
	Amount     string `json:"amount"      validate:"required,money"`
	Tenor      int    `json:"tenor"       validate:"required,gte=1,lte=360"`
	Notes      string `json:"notes"       validate:"max=500"`
}

type transitionReq struct {
	Notes string `json:"notes" validate:"max=500"`
}

func (h *LoanHandler) Apply(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing actor"})
	}
	var req applyLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	amount, _ := decimal.NewFromString(strings.TrimSpace(req.Amount))

	dto, err := h.uc.Apply(c.Request().Context(), a, loan.ApplyInput{
		CustomerID: req.CustomerID,
		ProductID:  req.ProductID,
		Amount:     amount,
		Tenor:      req.Tenor,
		Notes:      req.Notes,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

// Transition runs the workflow action named in the path.
func (h *LoanHandler) Transition(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing actor"})
	}
	loanID, ok := loanIDParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan_id path param"})
	}
	action := domain.Action(strings.ToLower(c.Param("action")))
	if !action.Valid() || action == domain.ActionApply {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown action"})
	}

	var req transitionReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
		}
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}

	dto, err := h.uc.Do(c.Request().Context(), a, action, loanID, req.Notes)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing actor"})
	}
	loanID, ok := loanIDParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan_id path param"})
	}
	dto, err := h.uc.Get(c.Request().Context(), a, loanID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) History(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing actor"})
	}
	loanID, ok := loanIDParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan_id path param"})
	}
	rows, err := h.uc.History(c.Request().Context(), a, loanID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"loan_id": loanID, "history": rows})
}

func (h *LoanHandler) ListByCustomer(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing actor"})
	}
	customerID := c.Param("customer_id")
	rows, err := h.uc.ListByCustomer(c.Request().Context(), a, customerID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"customer_id": customerID, "loans": rows})
}

func (h *LoanHandler) Availability(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing actor"})
	}
	productID := strings.TrimSpace(c.QueryParam("product_id"))
	if productID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing product_id query param"})
	}
	dto, err := h.uc.Available(c.Request().Context(), a, c.Param("customer_id"), productID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ActiveLoans(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing actor"})
	}
	customerID := c.Param("customer_id")
	ids, err := h.uc.ActiveLoans(c.Request().Context(), a, customerID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"customer_id": customerID, "loan_ids": ids})
}

// loanIDParam accepts only ids minted by Apply.
func loanIDParam(c echo.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("loan_id"))
	return id, reHex32.MatchString(id)
}
