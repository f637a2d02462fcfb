package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"tesouraria/internal/app"
	"tesouraria/internal/auth"
	"tesouraria/internal/log"
)

const sessionCookie = "tesouraria_session"

// requireSession resolves the session cookie. Requests without a valid
// session are sent to the login page.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err == nil {
			if id, ok := s.deps.Auth.Identify(r.Context(), c.Value); ok {
				ctx := context.WithValue(r.Context(), sessionKey{}, session{token: c.Value, identity: id})
				ctx = log.WithContext(ctx, log.FromContext(ctx).With(log.FieldUserID, id.UserID))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		if isHTMX(r) {
			NewHTMXResponse().Status(http.StatusUnauthorized).Redirect("/login").Write(w)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}

func (s *Server) currentIdentity(r *http.Request) (auth.Identity, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return auth.Identity{}, false
	}
	return s.deps.Auth.Identify(r.Context(), c.Value)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func loginMode(v string) string {
	if v == "register" {
		return "register"
	}
	return "login"
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentIdentity(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", pageData{
		Title: "Acessar Sistema",
		Mode:  loginMode(r.URL.Query().Get("mode")),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, "login", s.deps.Auth.SignIn)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, "register", s.deps.Auth.SignUp)
}

type authFunc func(ctx context.Context, email, password string) (auth.Identity, auth.Session, error)

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, mode string, fn authFunc) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	op := log.OpSignIn
	if mode == "register" {
		op = log.OpSignUp
	}

	id, sess, err := fn(r.Context(), email, password)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Authentication failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeAuth,
			log.FieldOperation, op)

		status := http.StatusUnauthorized
		if mode == "register" {
			status = http.StatusUnprocessableEntity
		}
		s.render(w, r, status, "login", pageData{
			Title: "Acessar Sistema",
			Mode:  mode,
			Email: email,
			Error: auth.Message(err),
		})
		return
	}

	s.metrics.signIns.Add(1)

	dark, err := s.deps.Prefs.DarkMode(r.Context(), id.UserID)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to read dark mode preference",
			log.FieldError, err.Error(),
			log.FieldUserID, id.UserID)
	}
	s.deps.Sessions.Dispatch(sess.Token,
		app.IdentityChanged{Identity: id, SignedIn: true},
		app.SetDarkMode{Enabled: dark},
	)

	s.setSessionCookie(w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.deps.Auth.SignOut(r.Context(), c.Value)
	}
	s.clearSessionCookie(w)

	if isHTMX(r) {
		NewHTMXResponse().Redirect("/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
