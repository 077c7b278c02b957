package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Port string

	// DataDir is the root for everything the service persists: the profile
	// collection file, uploaded voice samples and transient transcription
	// files.
	DataDir string

	// Transcription backends.
	TranscribeBackend string // "whisper" (local whisper-server) or "openai"
	WhisperServerURL  string
	WhisperModel      string
	WhisperDevice     string // preferred device; falls back to cpu at startup
	OpenAIKey         string

	// Non-standard-speech model (HuggingFace inference API).
	HuggingFaceToken     string
	HuggingFaceModelRepo string

	// Speech synthesis / voice training provider.
	ElevenLabsKey     string
	ElevenLabsVoiceID string
}

// Load loads configuration from environment variables. Missing required
// credentials are a startup-fatal condition, not a per-request error.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		DataDir:              getEnv("DATA_DIR", "data"),
		TranscribeBackend:    getEnv("TRANSCRIBE_BACKEND", "whisper"),
		WhisperServerURL:     getEnv("WHISPER_SERVER_URL", "http://localhost:8178"),
		WhisperModel:         getEnv("WHISPER_MODEL", "base"),
		WhisperDevice:        getEnv("WHISPER_DEVICE", "cuda"),
		OpenAIKey:            os.Getenv("OPENAI_API_KEY"),
		HuggingFaceToken:     os.Getenv("HUGGINGFACE_TOKEN"),
		HuggingFaceModelRepo: getEnv("HUGGINGFACE_MODEL_REPO", "cdl-inclusion/nairobo_innovation_sprint"),
		ElevenLabsKey:        os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID:    getEnv("ELEVENLABS_VOICE_ID", "default"),
	}

	if cfg.ElevenLabsKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY is required. Set it as an environment variable or in a .env file")
	}
	if cfg.HuggingFaceToken == "" {
		return nil, fmt.Errorf("HUGGINGFACE_TOKEN is required. Set it as an environment variable or in a .env file")
	}
	if cfg.TranscribeBackend == "openai" && cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required when TRANSCRIBE_BACKEND=openai")
	}

	return cfg, nil
}

// SamplesDir is where uploaded voice sample audio is stored.
func (c *Config) SamplesDir() string {
	return filepath.Join(c.DataDir, "voice_samples")
}

// TempDir holds transient files written for byte-stream transcription.
func (c *Config) TempDir() string {
	return filepath.Join(c.DataDir, "temp")
}

// ProfilesFile is the JSON profile collection file.
func (c *Config) ProfilesFile() string {
	return filepath.Join(c.DataDir, "voice_profiles.json")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
