package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ahinestrog/mybookstore-storefront/internal/api"
	"github.com/ahinestrog/mybookstore-storefront/internal/models"
	"github.com/ahinestrog/mybookstore-storefront/internal/session"
)

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	s.render(w, r, e, "login.html", view{Title: "Log in"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	ctx, cancel := s.ctx(r)
	defer cancel()

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	if username == "" || password == "" {
		redirect(w, r, "/login", "Username and password are required")
		return
	}
	res, err := s.api.Login(ctx, username, password)
	if err != nil {
		s.log.Warn().Err(err).Str("user", username).Msg("login failed")
		redirect(w, r, "/login", loginMessage(err))
		return
	}
	sess := session.Session{Token: res.Token, Username: username}
	if _, err := s.rotate(ctx, w, e, sess); err != nil {
		s.log.Error().Err(err).Msg("session save failed")
		http.Error(w, "could not start session", http.StatusInternalServerError)
		return
	}
	s.log.Info().Str("user", username).Bool("admin", sess.IsAdmin()).Msg("logged in")
	redirect(w, r, "/", "Welcome back, "+username)
}

func loginMessage(err error) string {
	var he *api.HTTPError
	if errors.As(err, &he) && he.Status < 500 && he.Message != "" {
		return he.Message
	}
	return "Login failed. Please try again."
}

// handleLogout drops the local session even when the API call fails.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	ctx, cancel := s.ctx(r)
	defer cancel()

	if cur := e.holder.Current(); cur.Authenticated() {
		if err := s.api.Logout(ctx, cur.Token); err != nil {
			s.log.Warn().Err(err).Msg("remote logout failed")
		}
	}
	if err := s.sessions.Delete(ctx, e.sid); err != nil {
		s.log.Error().Err(err).Msg("session delete failed")
	}
	e.holder.Clear()
	_ = e.store.Load(ctx)
	s.stores.remove(e.sid)
	redirect(w, r, "/", "You have been logged out")
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	s.render(w, r, e, "register.html", view{Title: "Sign up"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()

	reg := api.Registration{
		FullName:     strings.TrimSpace(r.FormValue("full_name")),
		Username:     strings.TrimSpace(r.FormValue("username")),
		Email:        strings.TrimSpace(r.FormValue("email")),
		Password:     r.FormValue("password"),
		MobileNumber: strings.TrimSpace(r.FormValue("mobile")),
	}
	if msg := validateRegistration(reg, r.FormValue("confirm")); msg != "" {
		redirect(w, r, "/register", msg)
		return
	}
	if err := s.api.Register(ctx, reg); err != nil {
		s.log.Warn().Err(err).Str("user", reg.Username).Msg("register failed")
		redirect(w, r, "/register", "Error registering user: "+errMessage(err))
		return
	}
	redirect(w, r, "/login", "User registered successfully")
}

func validateRegistration(reg api.Registration, confirm string) string {
	switch {
	case reg.FullName == "" || reg.Username == "" || reg.Email == "" || reg.Password == "":
		return "Please fill in every required field"
	case reg.Password != confirm:
		return "Passwords do not match"
	}
	return ""
}

func (s *Server) handleContactForm(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	s.render(w, r, e, "contact.html", view{Title: "Contact"})
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()

	msg := models.Contact{
		Name:    strings.TrimSpace(r.FormValue("name")),
		Email:   strings.TrimSpace(r.FormValue("email")),
		Message: strings.TrimSpace(r.FormValue("message")),
	}
	if msg.Name == "" || msg.Email == "" || msg.Message == "" {
		redirect(w, r, "/contact", "Please fill in every field")
		return
	}
	if err := s.api.SendContact(ctx, msg); err != nil {
		s.log.Warn().Err(err).Msg("contact failed")
		redirect(w, r, "/contact", "There was an error submitting your contact form. Please try again.")
		return
	}
	redirect(w, r, "/", "Contact details sent successfully!")
}

func errMessage(err error) string {
	var he *api.HTTPError
	if errors.As(err, &he) && he.Message != "" {
		return he.Message
	}
	return "service unavailable"
}
