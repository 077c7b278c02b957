package api

import (
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"voicebridge/internal/apperr"
	"voicebridge/internal/elevenlabs"
	"voicebridge/internal/transcribe"
	"voicebridge/internal/utils"
	"voicebridge/internal/voice"
)

const maxAudioBytes = 25 * 1024 * 1024 // 25MB upload limit

// Handlers bundles the request handlers with their dependencies. Everything
// is constructed once in main and passed in; handlers hold no package
// state.
type Handlers struct {
	engine       *transcribe.Engine
	repo         voice.ProfileRepository
	intake       *voice.Intake
	orchestrator *voice.Orchestrator
	analyzer     *voice.Analyzer
	synth        *elevenlabs.Client
}

// NewHandlers wires the handler set.
func NewHandlers(engine *transcribe.Engine, repo voice.ProfileRepository, intake *voice.Intake, orchestrator *voice.Orchestrator, analyzer *voice.Analyzer, synth *elevenlabs.Client) *Handlers {
	return &Handlers{
		engine:       engine,
		repo:         repo,
		intake:       intake,
		orchestrator: orchestrator,
		analyzer:     analyzer,
		synth:        synth,
	}
}

// RegisterRoutes registers the full REST surface on the router.
func RegisterRoutes(r *gin.Engine, h *Handlers) {
	r.GET("/", rootStatus)

	api := r.Group("/api")
	{
		api.GET("/health", healthCheck)
		api.POST("/speech-to-text", h.speechToText)
		api.POST("/text-to-speech", h.textToSpeech)
		api.GET("/voices", h.getVoices)

		v := api.Group("/voice")
		{
			v.POST("/transcribe", h.transcribeAudio)
			v.GET("/profiles", h.getProfiles)
			v.POST("/profiles", h.createProfile)
			v.POST("/upload-sample", h.uploadSample)
			v.POST("/profiles/:profile_id/train", h.trainProfile)
			v.POST("/profiles/:profile_id/activate", h.activateProfile)
			v.DELETE("/profiles/:profile_id", h.deleteProfile)
			v.POST("/analyze-speech", h.analyzeSpeech)
		}
	}
}

func rootStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "VoiceBridge Backend API",
		"status":  "healthy",
	})
}

func healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "voicebridge-backend",
	})
}

// speechToText handles POST /api/speech-to-text
func (h *Handlers) speechToText(c *gin.Context) {
	audio, err := readAudioFile(c, "file")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	language := c.DefaultPostForm("language", "en")
	useNonStandard := c.DefaultPostForm("use_non_standard_model", "false") == "true"

	result, err := h.engine.TranscribeBytes(c.Request.Context(), audio, language, useNonStandard)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, gin.H{
		"text":               result.Text,
		"language":           result.Language,
		"confidence":         result.Confidence,
		"full_transcription": result.Text,
		"segments":           result.Segments,
	})
}

// transcribeAudio handles POST /api/voice/transcribe
func (h *Handlers) transcribeAudio(c *gin.Context) {
	audio, err := readAudioFile(c, "file")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	language := c.DefaultPostForm("language", "en")

	result, err := h.engine.TranscribeBytes(c.Request.Context(), audio, language, false)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, gin.H{
		"text":       result.Text,
		"language":   result.Language,
		"confidence": result.Confidence,
	})
}

// getProfiles handles GET /api/voice/profiles
func (h *Handlers) getProfiles(c *gin.Context) {
	profiles, err := h.repo.List()
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, gin.H{"profiles": profiles})
}

// CreateProfileRequest is the POST /api/voice/profiles body. Pointer fields
// distinguish "absent" from zero so the store can apply its defaults.
type CreateProfileRequest struct {
	Name                  string         `json:"name" binding:"required"`
	Description           string         `json:"description"`
	Tone                  string         `json:"tone"`
	SpeakingRate          *float64       `json:"speaking_rate"`
	Stability             *float64       `json:"stability"`
	Similarity            *float64       `json:"similarity"`
	SpeechCharacteristics map[string]any `json:"speech_characteristics"`
}

// createProfile handles POST /api/voice/profiles
func (h *Handlers) createProfile(c *gin.Context) {
	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid profile payload: "+err.Error())
		return
	}

	profile, err := h.repo.Create(voice.ProfileSpec{
		Name:                  req.Name,
		Description:           req.Description,
		Tone:                  req.Tone,
		SpeakingRate:          req.SpeakingRate,
		Stability:             req.Stability,
		Similarity:            req.Similarity,
		SpeechCharacteristics: req.SpeechCharacteristics,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, gin.H{"profile": profile})
}

// uploadSample handles POST /api/voice/upload-sample
func (h *Handlers) uploadSample(c *gin.Context) {
	file, err := c.FormFile("audio")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "audio file is required")
		return
	}
	audio, err := readMultipartFile(file)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	profileID := c.PostForm("profile_id")
	if profileID == "" {
		utils.Error(c, http.StatusBadRequest, "profile_id is required")
		return
	}
	phrase := c.PostForm("phrase")
	if phrase == "" {
		utils.Error(c, http.StatusBadRequest, "phrase is required")
		return
	}
	category := c.DefaultPostForm("category", "general")
	characteristics := c.DefaultPostForm("speech_characteristics", "{}")

	sample, err := h.intake.Ingest(c.Request.Context(), profileID, phrase, category, file.Filename, audio, characteristics)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, gin.H{
		"sample_id":     sample.ID,
		"duration":      sample.Duration,
		"accuracy":      sample.Accuracy,
		"transcription": sample.Transcription,
		"confidence":    sample.Confidence,
	})
}

// trainProfile handles POST /api/voice/profiles/:profile_id/train
func (h *Handlers) trainProfile(c *gin.Context) {
	profileID := c.Param("profile_id")

	result, err := h.orchestrator.Start(c.Request.Context(), profileID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, gin.H{
		"profile_id": profileID,
		"status":     voice.TrainingComplete,
		"result":     result,
	})
}

// activateProfile handles POST /api/voice/profiles/:profile_id/activate
func (h *Handlers) activateProfile(c *gin.Context) {
	profileID := c.Param("profile_id")

	if err := h.repo.Activate(profileID); err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, gin.H{"message": "Profile activated"})
}

// deleteProfile handles DELETE /api/voice/profiles/:profile_id
func (h *Handlers) deleteProfile(c *gin.Context) {
	profileID := c.Param("profile_id")

	if err := h.repo.Delete(profileID); err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, gin.H{"message": "Profile deleted"})
}

// analyzeSpeech handles POST /api/voice/analyze-speech. The body is a JSON
// array of sample ids.
func (h *Handlers) analyzeSpeech(c *gin.Context) {
	var sampleIDs []string
	if err := c.ShouldBindJSON(&sampleIDs); err != nil {
		utils.Error(c, http.StatusBadRequest, "body must be a JSON array of sample ids")
		return
	}

	analysis, err := h.analyzer.Analyze(sampleIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.Success(c, gin.H{"analysis": analysis})
}

// TTSRequest is the POST /api/text-to-speech body.
type TTSRequest struct {
	Text         string   `json:"text" binding:"required"`
	VoiceID      string   `json:"voice_id"`
	Stability    *float64 `json:"stability"`
	Similarity   *float64 `json:"similarity"`
	Style        *float64 `json:"style"`
	SpeakerBoost *bool    `json:"speaker_boost"`
}

// textToSpeech handles POST /api/text-to-speech and streams back MP3 audio.
func (h *Handlers) textToSpeech(c *gin.Context) {
	var req TTSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid tts payload: "+err.Error())
		return
	}

	synthReq := elevenlabs.SynthesizeRequest{
		Text:         req.Text,
		VoiceID:      req.VoiceID,
		Stability:    0.5,
		Similarity:   0.75,
		Style:        0.0,
		SpeakerBoost: true,
	}
	if req.Stability != nil {
		synthReq.Stability = *req.Stability
	}
	if req.Similarity != nil {
		synthReq.Similarity = *req.Similarity
	}
	if req.Style != nil {
		synthReq.Style = *req.Style
	}
	if req.SpeakerBoost != nil {
		synthReq.SpeakerBoost = *req.SpeakerBoost
	}

	audio, err := h.synth.Synthesize(c.Request.Context(), synthReq)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=speech.mp3")
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

// getVoices handles GET /api/voices
func (h *Handlers) getVoices(c *gin.Context) {
	voices, err := h.synth.Voices(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, gin.H{"voices": voices})
}

// respondError maps the error taxonomy to HTTP statuses so every failure
// class stays distinguishable for clients.
func respondError(c *gin.Context, err error) {
	var notFound *apperr.NotFoundError
	var validation *apperr.ValidationError
	var conflict *apperr.ConflictError
	var transcription *apperr.TranscriptionError
	var external *apperr.ExternalServiceError
	var storage *apperr.StorageError

	switch {
	case errors.As(err, &notFound):
		utils.Error(c, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		utils.Error(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		utils.Error(c, http.StatusConflict, err.Error())
	case errors.As(err, &transcription):
		utils.Error(c, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &external):
		utils.Error(c, http.StatusBadGateway, err.Error())
	case errors.As(err, &storage):
		log.Printf("[API] Storage failure: %v", err)
		utils.Error(c, http.StatusInternalServerError, err.Error())
	default:
		log.Printf("[API] Unexpected failure: %v", err)
		utils.Error(c, http.StatusInternalServerError, err.Error())
	}
}

func readAudioFile(c *gin.Context, field string) ([]byte, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return nil, errors.New(field + " is required")
	}
	return readMultipartFile(file)
}

func readMultipartFile(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > maxAudioBytes {
		return nil, errors.New("file size exceeds 25MB limit")
	}
	src, err := file.Open()
	if err != nil {
		return nil, errors.New("failed to open uploaded file: " + err.Error())
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, errors.New("failed to read uploaded file: " + err.Error())
	}
	return data, nil
}
