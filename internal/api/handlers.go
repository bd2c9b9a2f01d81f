package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/BioFlow/internal/flow"
	"github.com/BTreeMap/BioFlow/internal/models"
	"github.com/BTreeMap/BioFlow/internal/shell"
	"github.com/go-chi/chi/v5"
)

type answerRequest struct {
	Option string `json:"option" validate:"required"`
}

type planRequest struct {
	Strategy string `json:"strategy" validate:"required"`
}

type waterRequest struct {
	Action string `json:"action" validate:"omitempty,oneof=add reset"`
}

type journalRequest struct {
	Date    string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Text    string `json:"text" validate:"required"`
	Analyze bool   `json:"analyze"`
}

type moodRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Mood string `json:"mood" validate:"required"`
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.app.State()))
}

func (s *Server) calendarHandler(w http.ResponseWriter, r *http.Request) {
	days := shell.Calendar(s.app.Now(), s.app.State().SelectedDate)
	writeJSONResponse(w, http.StatusOK, models.Success(days))
}

func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		slog.Warn("Server.uploadHandler: invalid multipart form", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Warn("Server.uploadHandler: missing file field", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing file field"))
		return
	}
	defer file.Close()

	if err := s.app.UploadLabReport(r.Context(), header.Filename, file); err != nil {
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Upload Failed"))
		return
	}
	slog.Info("Server.uploadHandler: lab report analysed", "filename", header.Filename)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Analysis Complete", s.app.Consultation()))
}

func (s *Server) demoHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.app.LoadDemo(r.Context()); err != nil {
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Demo Failed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Demo Loaded Successfully", s.app.Consultation()))
}

func (s *Server) consultationHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.app.Consultation()))
}

func (s *Server) answerHandler(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := s.decodeJSONBody(r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	snap, err := s.app.AnswerText(r.Context(), req.Option)
	switch {
	case errors.Is(err, flow.ErrConsultationInactive):
		writeJSONResponse(w, http.StatusConflict, models.Error("No consultation in progress"))
		return
	case errors.Is(err, flow.ErrInvalidOption):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	case err != nil:
		// The answer was recorded; only the downstream plan generation failed.
		slog.Warn("Server.answerHandler: finalization failed", "error", err)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(snap))
}

func (s *Server) planHandler(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := s.decodeJSONBody(r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := s.app.GeneratePlan(r.Context(), flow.PlanRequest{StrategyName: req.Strategy}); err != nil {
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Generation Failed"))
		return
	}
	st := s.app.State()
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Protocol Optimized", map[string]any{
		"week_plan":    st.WeekPlan,
		"workout_plan": st.WorkoutPlan,
	}))
}

func (s *Server) shoppingHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.app.ShoppingList(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Failed to generate shopping list"))
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="shopping-list.txt"`)
		fmt.Fprint(w, shell.ShoppingListText(list))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(list))
}

func (s *Server) waterHandler(w http.ResponseWriter, r *http.Request) {
	var req waterRequest
	if r.ContentLength != 0 {
		if err := s.decodeJSONBody(r, &req); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
	}
	if req.Action == "reset" {
		s.app.ResetWater(r.Context())
	} else {
		s.app.AddWater(r.Context())
	}
	st := s.app.State()
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{
		"water_intake": st.WaterIntake,
		"water_goal":   st.WaterGoal,
	}))
}

func (s *Server) fastingHandler(w http.ResponseWriter, r *http.Request) {
	active := s.app.ToggleFasting(r.Context())
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]any{
		"active":  active,
		"elapsed": s.app.State().FastingElapsed,
	}))
}

func (s *Server) journalHandler(w http.ResponseWriter, r *http.Request) {
	var req journalRequest
	if err := s.decodeJSONBody(r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if req.Date != "" {
		if err := s.app.SelectDate(req.Date); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
	}
	s.app.SaveJournal(r.Context(), req.Text)
	if !req.Analyze {
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Journal Saved", nil))
		return
	}
	analysis, err := s.app.AnalyzeJournal(r.Context(), req.Text)
	if err != nil {
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Analysis Failed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Analysis Complete", analysis))
}

func (s *Server) moodHandler(w http.ResponseWriter, r *http.Request) {
	var req moodRequest
	if err := s.decodeJSONBody(r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if req.Date != "" {
		if err := s.app.SelectDate(req.Date); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
	}
	s.app.SetMood(r.Context(), req.Mood)
	writeJSONResponse(w, http.StatusOK, models.Recorded())
}

func (s *Server) toolHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inputs := map[string]string{}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &inputs); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
	}
	result, err := s.app.RunTool(r.Context(), id, inputs)
	switch {
	case errors.Is(err, flow.ErrUnknownTool):
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
		return
	case err != nil:
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Error connecting."))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]any{
		"data": result,
		"text": shell.FormatToolResult(result),
	}))
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := s.decodeJSONBody(r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	reply, err := s.app.Chat(r.Context(), req.Message, nil)
	switch {
	case errors.Is(err, flow.ErrEmptyInput):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	case err != nil:
		writeJSONResponse(w, http.StatusBadGateway, models.Error("AI Brain Offline"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"reply": reply}))
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.app.Export()
	if err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Export failed"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("Server.exportHandler: failed to write export", "error", err)
	}
}

func (s *Server) toastsHandler(w http.ResponseWriter, r *http.Request) {
	toasts := []models.Toast{}
	if s.toasts != nil {
		toasts = s.toasts.Recent()
	}
	writeJSONResponse(w, http.StatusOK, models.Success(toasts))
}
