package server

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"net/url"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/conneroisu/plantlog/internal/errors"
	"github.com/conneroisu/plantlog/internal/renderer"
	"github.com/conneroisu/plantlog/internal/store"
)

// maxFormBytes caps a submitted form body.
const maxFormBytes = 64 << 10

func (s *Server) handleListPlants(w http.ResponseWriter, r *http.Request) {
	plants, err := s.store.ListPlants(r.Context())
	if err != nil {
		s.fail(w, r, storeError(err, "listing plants"))
		return
	}
	s.render(w, r, http.StatusOK, renderer.PagePlantsList, renderer.Context{"Plants": plants})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, renderer.PageAbout, nil)
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, renderer.PageCreate, nil)
}

func (s *Server) handleCreatePlant(w http.ResponseWriter, r *http.Request) {
	values, err := s.readForm(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	form, err := DecodePlantForm(values)
	if err != nil {
		plant := form.Plant()
		s.render(w, r, http.StatusBadRequest, renderer.PageCreate, renderer.Context{
			"Plant": &plant,
			"Error": err,
		})
		return
	}

	id, err := s.store.CreatePlant(r.Context(), form.Plant())
	if err != nil {
		s.fail(w, r, storeError(err, "creating plant"))
		return
	}
	s.logger.Info(r.Context(), "plant created", "plant_id", id.Hex())
	http.Redirect(w, r, plantPath(id), http.StatusSeeOther)
}

func (s *Server) handlePlantDetail(w http.ResponseWriter, r *http.Request) {
	id, err := plantID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	plant, err := s.store.GetPlant(r.Context(), id)
	if err != nil {
		s.fail(w, r, storeError(err, "loading plant"))
		return
	}
	harvests, err := s.store.ListHarvests(r.Context(), store.PlantRef(id))
	if err != nil {
		s.fail(w, r, storeError(err, "loading harvests"))
		return
	}
	if harvests == nil {
		harvests = []store.Harvest{}
	}

	s.render(w, r, http.StatusOK, renderer.PageDetail, renderer.Context{
		"Plant":    plant,
		"Harvests": harvests,
	})
}

func (s *Server) handleLogHarvest(w http.ResponseWriter, r *http.Request) {
	id, err := plantID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	values, err := s.readForm(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	form, err := DecodeHarvestForm(values)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// The plant may still be deleted between this check and the insert,
	// leaving an orphaned harvest.
	if _, err := s.store.GetPlant(r.Context(), id); err != nil {
		s.fail(w, r, storeError(err, "loading plant"))
		return
	}

	harvest := store.Harvest{
		Quantity: form.Quantity,
		Date:     form.Date,
		PlantID:  store.PlantRef(id),
	}
	if _, err := s.store.CreateHarvest(r.Context(), harvest); err != nil {
		s.fail(w, r, storeError(err, "logging harvest"))
		return
	}
	http.Redirect(w, r, plantPath(id), http.StatusSeeOther)
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id, err := plantID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	plant, err := s.store.GetPlant(r.Context(), id)
	if err != nil {
		s.fail(w, r, storeError(err, "loading plant"))
		return
	}
	s.render(w, r, http.StatusOK, renderer.PageEdit, renderer.Context{"Plant": plant})
}

func (s *Server) handleEditPlant(w http.ResponseWriter, r *http.Request) {
	id, err := plantID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	values, err := s.readForm(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	form, err := DecodePlantForm(values)
	if err != nil {
		plant := form.Plant()
		plant.ID = id
		s.render(w, r, http.StatusBadRequest, renderer.PageEdit, renderer.Context{
			"Plant": &plant,
			"Error": err,
		})
		return
	}

	if err := s.store.UpdatePlant(r.Context(), id, form.Fields()); err != nil {
		s.fail(w, r, storeError(err, "updating plant"))
		return
	}
	http.Redirect(w, r, plantPath(id), http.StatusSeeOther)
}

func (s *Server) handleDeletePlant(w http.ResponseWriter, r *http.Request) {
	id, err := plantID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.store.DeletePlant(r.Context(), id)
	if err != nil {
		s.fail(w, r, storeError(err, "deleting plant"))
		return
	}
	s.logger.Info(r.Context(), "plant deleted",
		"plant_id", id.Hex(),
		"plants", res.Plants,
		"harvests", res.Harvests,
	)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn(r.Context(), err, "health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable\n"))
		return
	}
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.fail(w, r, errors.NewNotFoundError("page_not_found", "There is nothing at this address."))
}

// readForm parses a urlencoded or multipart body. Parse failures are
// reported as validation errors.
func (s *Server) readForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return nil, &errors.AppError{
			Type:    errors.ErrorTypeValidation,
			Code:    "malformed_form",
			Message: "The submitted form could not be read.",
			Cause:   err,
		}
	}
	return r.PostForm, nil
}

// plantID parses the {plant_id} path segment. Text that is not an id can
// never name a plant, so it is reported as not found.
func plantID(r *http.Request) (primitive.ObjectID, error) {
	id, err := store.ParseID(r.PathValue("plant_id"))
	if err != nil {
		nf := errors.NewNotFoundError("invalid_plant_id", "Invalid plant id.")
		nf.Cause = err
		return primitive.NilObjectID, nf
	}
	return id, nil
}

func plantPath(id primitive.ObjectID) string {
	return "/plant/" + id.Hex()
}

// storeError classifies a store failure for the response.
func storeError(err error, action string) error {
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		return errors.NewNotFoundError("plant_not_found", "That plant does not exist.")
	case stderrors.Is(err, store.ErrUnavailable):
		return errors.NewUnavailableError("store_unavailable", action, err)
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewUnavailableError("store_timeout", action, err)
	default:
		return errors.NewStoreError("store_failed", action, err)
	}
}

// fail logs err once and answers with the error page.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "request failed", "status", status)
	} else {
		s.logger.Debug(r.Context(), "request rejected", "status", status, "error", err.Error())
	}

	data := renderer.Context{
		"Status":     status,
		"StatusText": http.StatusText(status),
		"Message":    errors.PublicMessage(err),
	}
	var ae *errors.AppError
	if stderrors.As(err, &ae) && len(ae.Fields) > 0 {
		data["Fields"] = ae.Fields
	}
	s.render(w, r, status, renderer.PageError, data)
}

// render buffers the page so a template failure can still produce a clean
// 500 instead of a half-written body.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data renderer.Context) {
	var buf bytes.Buffer
	if err := s.renderer.Page(page, data).Render(r.Context(), &buf); err != nil {
		s.logger.Error(r.Context(), err, "rendering page", "page", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug(r.Context(), "writing response", "error", err.Error())
	}
}
