package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/BioFlow/internal/flow"
	"github.com/BTreeMap/BioFlow/internal/planclient"
	"github.com/BTreeMap/BioFlow/internal/shell"
	"github.com/BTreeMap/BioFlow/internal/store"
	"github.com/BTreeMap/BioFlow/internal/testutil"
)

const demoContext = `{
	"patient_name": "Demo User",
	"health_score": 71,
	"issues": [{"title": "Low Vitamin D", "explanation": "Below range", "value": 18,
		"options": [{"text": "Add Supplement", "type": "Wellness"}, {"text": "Eat Salmon", "type": "Diet"}]}]
}`

const weekPlan = `[{"day": "Monday", "meals": [{"title": "Oatmeal", "type": "Breakfast", "calories": 350}], "total_macros": {"calories": 350, "protein": "12g", "carbs": "60g", "fats": "6g"}}]`

const workoutPlan = `{"plan": [{"day": "Day 1", "focus": "Legs", "exercises": ["Squat", {"name": "Lunge", "sets": 3}]}]}`

// newPlanService fakes the remote plan service.
func newPlanService(t *testing.T, fail bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	reply := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if fail {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		}
	}
	mux.HandleFunc(planclient.EndpointInitContext, reply(demoContext))
	mux.HandleFunc(planclient.EndpointLoadDemoData, reply(demoContext))
	mux.HandleFunc(planclient.EndpointGenerateWeek, reply(weekPlan))
	mux.HandleFunc(planclient.EndpointGenerateWorkout, reply(workoutPlan))
	mux.HandleFunc(planclient.EndpointChatAgent, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Eat more greens."))
	})
	mux.HandleFunc(planclient.EndpointShoppingList, reply(`{"Produce": ["Kale"]}`))
	mux.HandleFunc("/flavor_pairing", reply(`{"pairings": ["Dill", "Lemon"]}`))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	server   *Server
	app      *flow.App
	notifier *shell.Notifier
}

func newFixture(t *testing.T, fail bool) *fixture {
	t.Helper()
	svc := newPlanService(t, fail)
	client, err := planclient.NewClient(planclient.WithBaseURL(svc.URL), planclient.WithRateLimit(0, 0))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	notifier := shell.NewNotifier(nil)
	clock := testutil.NewManualClock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	app := flow.NewApp(flow.NewStateManager(store.NewInMemoryStore()), client,
		flow.WithClock(clock), flow.WithNotifier(notifier))
	if err := app.Boot(context.Background()); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	t.Cleanup(app.Close)
	return &fixture{
		server:   NewServer(app, notifier, WithRateLimit(0)),
		app:      app,
		notifier: notifier,
	}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeResult(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]any {
	t.Helper()
	resp := testutil.AssertJSONResponse(t, rr, expectedStatus)
	result, _ := resp["result"].(map[string]any)
	return result
}

func TestStateHandler(t *testing.T) {
	f := newFixture(t, false)
	rr := f.do(testutil.CreateHTTPRequest(t, http.MethodGet, "/state", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "GET /state")
	result := decodeResult(t, rr, "ok")
	if result["user_name"] != "Guest" || result["user_streak"].(float64) != 1 {
		t.Errorf("unexpected state %v", result)
	}
}

func TestDemoConsultationAndPlan(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/context/demo", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "POST /context/demo")
	snap := decodeResult(t, rr, "ok")
	if snap["active"] != true {
		t.Fatalf("expected active consultation, got %v", snap)
	}

	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/consultation/answer", map[string]string{"option": "Not An Option"}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid option")

	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/consultation/answer", map[string]string{"option": "Eat Salmon"}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "biomarker answer")

	for f.app.Consultation().Active {
		opt := f.app.Consultation().Current.Options[0].Text
		rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/consultation/answer", map[string]string{"option": opt}))
		testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "lifestyle answer")
	}

	st := f.app.State()
	if len(st.WeekPlan) != 1 || st.WeekPlan[0].Date != "2024-03-10" {
		t.Fatalf("expected plan dated today, got %+v", st.WeekPlan)
	}
	if len(st.WorkoutPlan) != 1 || st.WorkoutPlan[0].Day != "Sun" || st.WorkoutPlan[0].Exercises[0].Name != "Squat" {
		t.Errorf("unexpected workout %+v", st.WorkoutPlan)
	}

	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/consultation/answer", map[string]string{"option": "Male"}))
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "answer after completion")
}

func TestUploadHandler(t *testing.T) {
	f := newFixture(t, false)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "labs.pdf")
	part.Write([]byte("%PDF-1.4"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/context/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := f.do(req)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "POST /context/upload")
	if f.app.State().UserName != "Demo User" {
		t.Error("expected context applied")
	}

	req = httptest.NewRequest(http.MethodPost, "/context/upload", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rr = f.do(req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "upload without multipart")
}

func TestUpstreamFailures(t *testing.T) {
	f := newFixture(t, true)

	rr := f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/context/demo", nil))
	testutil.AssertHTTPStatus(t, http.StatusBadGateway, rr.Code, "demo failure")
	testutil.AssertJSONResponse(t, rr, "error")

	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/plan", map[string]string{"strategy": "Keto"}))
	testutil.AssertHTTPStatus(t, http.StatusBadGateway, rr.Code, "plan failure")

	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodGet, "/toasts", nil))
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	toasts, _ := resp["result"].([]any)
	if len(toasts) != 2 {
		t.Errorf("expected two error toasts, got %v", toasts)
	}
}

func TestPlanValidation(t *testing.T) {
	f := newFixture(t, false)
	rr := f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/plan", map[string]string{}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing strategy")

	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/plan", map[string]string{"strategy": "Keto"}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "plan")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	if resp["message"] != "Protocol Optimized" {
		t.Errorf("unexpected message %v", resp["message"])
	}
}

func TestTrackerHandlers(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/water", nil))
	result := decodeResult(t, rr, "ok")
	if result["water_intake"].(float64) != 1 || result["water_goal"].(float64) != 8 {
		t.Errorf("unexpected water %v", result)
	}
	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/water", map[string]string{"action": "drain"}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid water action")
	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/water", map[string]string{"action": "reset"}))
	if decodeResult(t, rr, "ok")["water_intake"].(float64) != 0 {
		t.Error("expected water reset")
	}

	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/fasting/toggle", nil))
	result = decodeResult(t, rr, "ok")
	if result["active"] != true || result["elapsed"] != "0h 0m" {
		t.Errorf("unexpected fasting %v", result)
	}

	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/journal", map[string]string{"text": "Good day", "date": "2024-03-09"}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "journal")
	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/mood", map[string]string{"mood": "Calm"}))
	testutil.AssertJSONResponse(t, rr, "recorded")
	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/mood", map[string]string{"mood": "Calm", "date": "03/09"}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid date")

	st := f.app.State()
	if st.JournalEntries["2024-03-09"] != "Good day" || st.MoodHistory["2024-03-09"] != "Calm" {
		t.Errorf("unexpected journal state %v %v", st.JournalEntries, st.MoodHistory)
	}
}

func TestToolAndChatHandlers(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/tools/flavor_pairing", map[string]string{"ingredient": "Salmon"}))
	result := decodeResult(t, rr, "ok")
	if result["text"] != "• Dill\n• Lemon" {
		t.Errorf("unexpected tool text %v", result["text"])
	}
	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/tools/not_a_tool", nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown tool")

	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/chat", map[string]string{"message": "Ideas?"}))
	if decodeResult(t, rr, "ok")["reply"] != "Eat more greens." {
		t.Errorf("unexpected chat reply: %s", rr.Body.String())
	}
	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodPost, "/chat", map[string]string{"message": ""}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "empty chat")
}

func TestShoppingAndExport(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(testutil.CreateHTTPRequest(t, http.MethodGet, "/shopping?format=text", nil))
	if got := rr.Body.String(); !strings.Contains(got, "[ PRODUCE ]\n - Kale\n") {
		t.Errorf("unexpected shopping list %q", got)
	}

	rr = f.do(testutil.CreateHTTPRequest(t, http.MethodGet, "/export", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "GET /export")
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="bioflow_data_2024-03-10.json"` {
		t.Errorf("unexpected disposition %q", got)
	}
	var doc map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if _, ok := doc["achievements"]; !ok {
		t.Error("export missing achievements")
	}
}

func TestCalendarHandler(t *testing.T) {
	f := newFixture(t, false)
	rr := f.do(testutil.CreateHTTPRequest(t, http.MethodGet, "/calendar", nil))
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	days, _ := resp["result"].([]any)
	if len(days) != shell.CalendarDays {
		t.Fatalf("expected %d days, got %d", shell.CalendarDays, len(days))
	}
	first := days[0].(map[string]any)
	if first["full_date"] != "2024-03-10" || first["active"] != true {
		t.Errorf("unexpected first day %v", first)
	}
}
