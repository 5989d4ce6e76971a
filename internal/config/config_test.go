package config

import "testing"

func TestSanitizeRateAcceptsLegalValues(t *testing.T) {
	for _, r := range ValidRates {
		if got := SanitizeRate(r); got != r {
			t.Errorf("SanitizeRate(%d) = %d, want %d", r, got, r)
		}
	}
}

func TestSanitizeRateCorrectsIllegalValue(t *testing.T) {
	if got := SanitizeRate(48000); got != 11025 {
		t.Errorf("SanitizeRate(48000) = %d, want 11025", got)
	}
}

func TestDefaultCVars(t *testing.T) {
	cfg := DefaultCVars()
	if cfg.RateHz != 11025 {
		t.Errorf("default rate = %d, want 11025", cfg.RateHz)
	}
	if cfg.Enable3D {
		t.Error("default Enable3D should be false")
	}
}

func TestDriverConfigFromEnvClampsChannelCount(t *testing.T) {
	t.Setenv("AUDIO_SFX_CHANNELS", "9999")
	cfg := DriverConfigFromEnv()
	if cfg.SoundChannelCount != 256 {
		t.Errorf("SoundChannelCount = %d, want clamped to 256", cfg.SoundChannelCount)
	}
}
