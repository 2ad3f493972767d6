package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquabill/aquabill-web/internal/shared"
	"github.com/aquabill/aquabill-web/internal/upstream"
	"github.com/aquabill/aquabill-web/internal/view"
)

// Handler wires HTTP endpoints for login and logout. Credential checks are
// delegated to the billing service; on success the returned token, username
// and role are kept in the session.
type Handler struct {
	logger         *slog.Logger
	api            *upstream.Client
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, api *upstream.Client, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		api:            api,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if _, ok := sess.Identity(); ok {
		http.Redirect(w, r, "/dashboard/home", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, loginPageData{}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := loginForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	errors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errors[fieldErr.Field()] = "This field is required"
		}
	}

	if len(errors) == 0 {
		result, err := h.api.Login(r.Context(), form.Username, form.Password)
		if err != nil {
			h.logger.Warn("login rejected", slog.String("username", form.Username), slog.Any("error", err))
			errors["general"] = "Invalid username or password"
		} else {
			if sess == nil {
				h.logger.Error("session missing during login")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			sess.SetIdentity(shared.Identity{
				Username: result.Username,
				Role:     result.Role,
				Token:    result.AccessToken,
			})
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back"})
			http.Redirect(w, r, "/dashboard/home", http.StatusSeeOther)
			return
		}
	}

	form.Password = ""
	h.renderLogin(w, r, loginPageData{Form: form, Errors: errors}, http.StatusBadRequest)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		sess.ClearIdentity()
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, data loginPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	viewData := view.TemplateData{
		Title:       "Sign in",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
