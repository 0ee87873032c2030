package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vbonduro/donormap/internal/domain"
	"github.com/vbonduro/donormap/internal/service"
)

type identityKey struct{}

// requireIdentity admits requests that carry the owner headers set by the
// authenticating proxy and sends everyone else back to the map.
func (s *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := domain.Identity{
			UserID: strings.TrimSpace(r.Header.Get(s.userHeader)),
			Email:  strings.TrimSpace(r.Header.Get(s.emailHeader)),
		}
		if id.UserID == "" {
			http.Redirect(w, r, "/map", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

func identityFrom(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(identityKey{}).(domain.Identity)
	return id
}

type donorFormData struct {
	Form      service.Registration
	Error     string
	ActiveNav string
}

func (s *Server) handleDonorForm(w http.ResponseWriter, _ *http.Request) {
	s.renderDonorForm(w, http.StatusOK, donorFormData{})
}

func (s *Server) handleRegisterDonor(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in := service.Registration{
		Name:              r.PostFormValue("name"),
		BloodGroup:        r.PostFormValue("bloodGroup"),
		Contact:           r.PostFormValue("contact"),
		Latitude:          r.PostFormValue("latitude"),
		Longitude:         r.PostFormValue("longitude"),
		Availability:      r.PostFormValue("availability"),
		Age:               r.PostFormValue("age"),
		Weight:            r.PostFormValue("weight"),
		LastDonation:      r.PostFormValue("lastDonation"),
		MedicalConditions: r.PostFormValue("medicalConditions"),
	}

	_, err := s.donors.Register(r.Context(), identityFrom(r.Context()), in)
	switch {
	case errors.Is(err, service.ErrMissingField), errors.Is(err, service.ErrInvalidField):
		s.renderDonorForm(w, http.StatusBadRequest, donorFormData{Form: in, Error: err.Error()})
		return
	case err != nil:
		s.logger.Error("register donor error", "error", err)
		s.renderDonorForm(w, http.StatusInternalServerError, donorFormData{Form: in, Error: "Could not save your registration. Please try again."})
		return
	}

	http.Redirect(w, r, "/map", http.StatusSeeOther)
}

func (s *Server) renderDonorForm(w http.ResponseWriter, status int, data donorFormData) {
	data.ActiveNav = "register"
	if err := s.renderPage(w, status, data, "base.html", "pages/donor_form.html"); err != nil {
		s.logger.Error("render page error", "error", err)
	}
}
