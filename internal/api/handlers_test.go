package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"voicebridge/internal/elevenlabs"
	"voicebridge/internal/transcribe"
	"voicebridge/internal/voice"
)

// fakeBackend is a canned transcription backend for the engine.
type fakeBackend struct {
	name   string
	result *transcribe.Result
}

func (f *fakeBackend) Transcribe(ctx context.Context, audioPath, language string) (*transcribe.Result, error) {
	res := *f.result
	res.Language = language
	return &res, nil
}

func (f *fakeBackend) Name() string { return f.name }

// fakeTrainer lets the train endpoint succeed without a provider.
type fakeTrainer struct{}

func (fakeTrainer) Train(ctx context.Context, p *voice.VoiceProfile) (*voice.TrainingResult, error) {
	return &voice.TrainingResult{ProviderVoiceID: "voice-123", SampleCount: len(p.Samples), Message: "ok"}, nil
}

type testEnv struct {
	router *gin.Engine
	store  *voice.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dataDir := t.TempDir()
	store, err := voice.NewStore(filepath.Join(dataDir, "profiles.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	// avg_logprob -1.8 maps to confidence 0.82 under the engine transform
	standard := &fakeBackend{name: "whisper", result: &transcribe.Result{
		Text: "hello world",
		Segments: []transcribe.Segment{
			{ID: 0, Text: "hello world", AvgLogProb: -1.8, HasLogProb: true},
		},
	}}
	nonStandard := &fakeBackend{name: "huggingface", result: &transcribe.Result{Text: "hello from hf"}}
	engine := transcribe.NewEngine(standard, nonStandard, filepath.Join(dataDir, "temp"))

	synthSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/voices":
			json.NewEncoder(w).Encode(map[string]any{"voices": []map[string]any{{"voice_id": "v1", "name": "Rachel"}}})
		default:
			w.Write([]byte("mp3-bytes"))
		}
	}))
	t.Cleanup(synthSrv.Close)
	synth, err := elevenlabs.NewClient("test-key", "default", elevenlabs.WithBaseURL(synthSrv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	intake := voice.NewIntake(engine, store, filepath.Join(dataDir, "voice_samples"))
	orchestrator := voice.NewOrchestrator(store, fakeTrainer{}, 0)
	analyzer := voice.NewAnalyzer(store)

	router := gin.New()
	RegisterRoutes(router, NewHandlers(engine, store, intake, orchestrator, analyzer, synth))
	return &testEnv{router: router, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Header().Get("Content-Type") != "audio/mpeg" {
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("%s %s: parse response %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, parsed
}

func (e *testEnv) doJSON(t *testing.T, method, path string, payload any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return e.do(t, method, path, bytes.NewBuffer(data), "application/json")
}

func multipartBody(t *testing.T, fileField, filename string, audio []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(fileField, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(audio)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

// ---- Scenario: profile lifecycle end to end ----

func TestProfileLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Create profile "Ada": inactive, default stability.
	w, resp := env.doJSON(t, http.MethodPost, "/api/voice/profiles", map[string]any{"name": "Ada"})
	if w.Code != http.StatusOK {
		t.Fatalf("create profile: status %d: %s", w.Code, w.Body.String())
	}
	profile := resp["profile"].(map[string]any)
	profileID := profile["id"].(string)
	if profile["is_active"] != false {
		t.Error("new profile must be inactive")
	}
	if profile["stability"] != 0.5 {
		t.Errorf("expected default stability 0.5, got %v", profile["stability"])
	}

	// Upload a sample; accuracy equals the transcription confidence.
	body, ct := multipartBody(t, "audio", "hello.wav", []byte("fake-audio"), map[string]string{
		"phrase":     "hello world",
		"profile_id": profileID,
	})
	w, resp = env.do(t, http.MethodPost, "/api/voice/upload-sample", body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("upload sample: status %d: %s", w.Code, w.Body.String())
	}
	sampleID := resp["sample_id"].(string)
	if acc := resp["accuracy"].(float64); acc != 0.82 {
		t.Errorf("expected accuracy 0.82, got %v", acc)
	}
	if resp["transcription"] != "hello world" {
		t.Errorf("unexpected transcription %v", resp["transcription"])
	}

	sample, err := env.store.GetSample(sampleID)
	if err != nil {
		t.Fatalf("GetSample: %v", err)
	}
	if _, err := os.Stat(sample.AudioPath); err != nil {
		t.Fatalf("sample audio missing: %v", err)
	}

	// Activate; the listing shows Ada active.
	w, _ = env.do(t, http.MethodPost, "/api/voice/profiles/"+profileID+"/activate", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("activate: status %d: %s", w.Code, w.Body.String())
	}
	w, resp = env.do(t, http.MethodGet, "/api/voice/profiles", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	profiles := resp["profiles"].([]any)
	if len(profiles) != 1 || profiles[0].(map[string]any)["is_active"] != true {
		t.Errorf("expected Ada active in listing: %v", profiles)
	}

	// Train; queued->training->trained with a non-null result.
	w, resp = env.do(t, http.MethodPost, "/api/voice/profiles/"+profileID+"/train", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("train: status %d: %s", w.Code, w.Body.String())
	}
	result := resp["result"].(map[string]any)
	if result["provider_voice_id"] != "voice-123" {
		t.Errorf("expected training result payload, got %v", result)
	}
	stored, err := env.store.Get(profileID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.TrainingStatus != voice.TrainingComplete {
		t.Errorf("expected trained status, got %s", stored.TrainingStatus)
	}

	// Delete; the profile is gone and the audio file released.
	w, _ = env.do(t, http.MethodDelete, "/api/voice/profiles/"+profileID, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status %d", w.Code)
	}
	w, _ = env.do(t, http.MethodDelete, "/api/voice/profiles/"+profileID, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("repeated delete must succeed, status %d", w.Code)
	}
	if _, err := env.store.Get(profileID); err == nil {
		t.Error("expected profile gone after delete")
	}
	if _, err := os.Stat(sample.AudioPath); !os.IsNotExist(err) {
		t.Errorf("expected sample audio released after delete: %v", err)
	}
}

// ---- Individual endpoints ----

func TestSpeechToText(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartBody(t, "file", "clip.wav", []byte("fake-audio"), map[string]string{"language": "en"})
	w, resp := env.do(t, http.MethodPost, "/api/speech-to-text", body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if resp["text"] != "hello world" || resp["full_transcription"] != "hello world" {
		t.Errorf("unexpected text fields: %v", resp)
	}
	if resp["confidence"].(float64) != 0.82 {
		t.Errorf("expected confidence 0.82, got %v", resp["confidence"])
	}
	if _, ok := resp["segments"]; !ok {
		t.Error("expected segments field")
	}
}

func TestSpeechToText_NonStandardModel(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartBody(t, "file", "clip.wav", []byte("fake-audio"), map[string]string{
		"use_non_standard_model": "true",
	})
	w, resp := env.do(t, http.MethodPost, "/api/speech-to-text", body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if resp["text"] != "hello from hf" {
		t.Errorf("expected non-standard backend text, got %v", resp["text"])
	}
	// HF backend reports no segments, so confidence is exactly 0.
	if resp["confidence"].(float64) != 0.0 {
		t.Errorf("expected confidence 0.0, got %v", resp["confidence"])
	}
}

func TestSpeechToText_MissingFile(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodPost, "/api/speech-to-text", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if resp["success"] != false {
		t.Errorf("expected success=false, got %v", resp)
	}
}

func TestUploadSample_BadCharacteristics(t *testing.T) {
	env := newTestEnv(t)
	w, resp := env.doJSON(t, http.MethodPost, "/api/voice/profiles", map[string]any{"name": "Ada"})
	if w.Code != http.StatusOK {
		t.Fatalf("create: %d", w.Code)
	}
	profileID := resp["profile"].(map[string]any)["id"].(string)

	body, ct := multipartBody(t, "audio", "c.wav", []byte("audio"), map[string]string{
		"phrase":                 "hi",
		"profile_id":             profileID,
		"speech_characteristics": "__import__('os')",
	})
	w, _ = env.do(t, http.MethodPost, "/api/voice/upload-sample", body, ct)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed characteristics, got %d", w.Code)
	}
}

func TestUploadSample_UnknownProfile(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartBody(t, "audio", "c.wav", []byte("audio"), map[string]string{
		"phrase":     "hi",
		"profile_id": "missing",
	})
	w, _ := env.do(t, http.MethodPost, "/api/voice/upload-sample", body, ct)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestTrain_NoSamplesIsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	w, resp := env.doJSON(t, http.MethodPost, "/api/voice/profiles", map[string]any{"name": "Ada"})
	if w.Code != http.StatusOK {
		t.Fatalf("create: %d", w.Code)
	}
	profileID := resp["profile"].(map[string]any)["id"].(string)

	w, _ = env.do(t, http.MethodPost, "/api/voice/profiles/"+profileID+"/train", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty training set, got %d", w.Code)
	}
}

func TestAnalyzeSpeech(t *testing.T) {
	env := newTestEnv(t)
	w, resp := env.doJSON(t, http.MethodPost, "/api/voice/profiles", map[string]any{"name": "Ada"})
	if w.Code != http.StatusOK {
		t.Fatalf("create: %d", w.Code)
	}
	profileID := resp["profile"].(map[string]any)["id"].(string)

	var sampleIDs []string
	for i := 0; i < 2; i++ {
		body, ct := multipartBody(t, "audio", "c.wav", []byte("audio"), map[string]string{
			"phrase":     "hi",
			"profile_id": profileID,
		})
		w, resp = env.do(t, http.MethodPost, "/api/voice/upload-sample", body, ct)
		if w.Code != http.StatusOK {
			t.Fatalf("upload: %d", w.Code)
		}
		sampleIDs = append(sampleIDs, resp["sample_id"].(string))
	}

	w, resp = env.doJSON(t, http.MethodPost, "/api/voice/analyze-speech", sampleIDs)
	if w.Code != http.StatusOK {
		t.Fatalf("analyze: status %d: %s", w.Code, w.Body.String())
	}
	analysis := resp["analysis"].(map[string]any)
	if analysis["sample_count"].(float64) != 2 {
		t.Errorf("expected sample count 2, got %v", analysis["sample_count"])
	}
	if analysis["mean_confidence"].(float64) != 0.82 {
		t.Errorf("expected mean confidence 0.82, got %v", analysis["mean_confidence"])
	}

	w, _ = env.doJSON(t, http.MethodPost, "/api/voice/analyze-speech", []string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty id list, got %d", w.Code)
	}
}

func TestTextToSpeech(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.doJSON(t, http.MethodPost, "/api/text-to-speech", map[string]any{"text": "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("expected audio/mpeg, got %q", got)
	}
	if w.Body.String() != "mp3-bytes" {
		t.Errorf("unexpected audio body %q", w.Body.String())
	}
}

func TestGetVoices(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodGet, "/api/voices", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	voices := resp["voices"].([]any)
	if len(voices) != 1 || voices[0].(map[string]any)["voice_id"] != "v1" {
		t.Errorf("unexpected voices: %v", voices)
	}
}

func TestActivate_UnknownProfileIs404(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodPost, "/api/voice/profiles/missing/activate", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
