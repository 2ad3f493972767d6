// Package users serves the operator administration page. Accounts live on
// the billing service; this page only fronts its registration endpoint.
package users

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquabill/aquabill-web/internal/platform/httpx"
	"github.com/aquabill/aquabill-web/internal/shared"
	"github.com/aquabill/aquabill-web/internal/upstream"
	"github.com/aquabill/aquabill-web/internal/view"
)

// Port is the slice of the upstream client this page needs.
type Port interface {
	RegisterUser(ctx context.Context, input upstream.RegisterUserInput) error
}

// Handler wires the operator administration endpoints.
type Handler struct {
	logger      *slog.Logger
	api         Port
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, api Port, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:      logger,
		api:         api,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
	}
}

// MountRoutes registers operator administration routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showUsers)
	r.Post("/", h.handleRegister)
}

type registerForm struct {
	Username string `validate:"required,min=3"`
	Password string `validate:"required,min=8"`
	Name     string
	Role     string `validate:"required,oneof=admin cashier"`
}

type usersPageData struct {
	Form   registerForm
	Errors map[string]string
}

func (h *Handler) showUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	h.render(w, r, usersPageData{Form: registerForm{Role: "cashier"}}, http.StatusOK)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := registerForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Role:     r.PostFormValue("role"),
	}
	fieldErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			switch fieldErr.Field() {
			case "Password":
				fieldErrors["Password"] = "Password must be at least 8 characters"
			case "Username":
				fieldErrors["Username"] = "Username must be at least 3 characters"
			default:
				fieldErrors[fieldErr.Field()] = "Invalid value"
			}
		}
	}
	if len(fieldErrors) > 0 {
		form.Password = ""
		h.render(w, r, usersPageData{Form: form, Errors: fieldErrors}, http.StatusBadRequest)
		return
	}

	input := upstream.RegisterUserInput{
		Username: form.Username,
		Password: form.Password,
		Name:     form.Name,
		Role:     form.Role,
	}

	sess := shared.SessionFromContext(r.Context())
	if err := h.api.RegisterUser(r.Context(), input); err != nil {
		h.logger.Error("register operator", slog.String("username", form.Username), slog.Any("error", err))
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Could not register operator"})
	} else {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Operator registered"})
	}
	http.Redirect(w, r, "/dashboard/users", http.StatusSeeOther)
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	sess := shared.SessionFromContext(r.Context())
	ident, ok := sess.Identity()
	if !ok || !ident.IsAdmin() {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "Only administrators can manage operators")
		return false
	}
	return true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data usersPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	ident, _ := sess.Identity()
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	viewData := view.TemplateData{
		Title:       "Operators",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Identity:    &ident,
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/users.html", viewData); err != nil {
		h.logger.Error("render users", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
