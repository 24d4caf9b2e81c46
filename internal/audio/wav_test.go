package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	// Generate test audio samples (440Hz sine wave for 0.1 seconds at 8kHz)
	sampleRate := 8000
	duration := 0.1
	frequency := 440.0

	numSamples := int(float64(sampleRate) * duration)
	samples := make([]int16, numSamples)

	for i := 0; i < numSamples; i++ {
		tm := float64(i) / float64(sampleRate)
		amplitude := 16383.0 // Half of max int16 to avoid clipping
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*frequency*tm))
	}

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	expectedSize := 44 + len(samples)*2
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	if string(wavData[0:4]) != "RIFF" || string(wavData[8:12]) != "WAVE" {
		t.Error("Generated WAV is missing RIFF/WAVE markers")
	}

	if got := binary.LittleEndian.Uint32(wavData[24:28]); got != uint32(sampleRate) {
		t.Errorf("Expected sample rate %d in header, got %d", sampleRate, got)
	}
}

func TestDecodeWAV(t *testing.T) {
	originalSamples := []int16{100, -200, 300, -400, 500}
	sampleRate := 8000

	wavData, err := EncodeWAV(originalSamples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, decodedRate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decodedRate != sampleRate {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, decodedRate)
	}

	if len(decoded) != len(originalSamples) {
		t.Fatalf("Expected %d samples, got %d", len(originalSamples), len(decoded))
	}

	for i, want := range originalSamples {
		if decoded[i] != want {
			t.Errorf("Sample %d: expected %d, got %d", i, want, decoded[i])
		}
	}
}

func TestEncodeFloat32(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1.0, -1.0}
	sampleRate := 16000

	wavData, err := EncodeFloat32(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeFloat32 failed: %v", err)
	}

	decoded, decodedRate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decodedRate != sampleRate {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, decodedRate)
	}

	expected := []int16{0, 16383, -16383, 32767, -32767}
	for i, want := range expected {
		if decoded[i] != want {
			t.Errorf("Sample %d: expected %d, got %d", i, want, decoded[i])
		}
	}
}

func TestEncodeFloat32ClipsOutOfRange(t *testing.T) {
	samples := []float32{2.0, -3.0}

	wavData, err := EncodeFloat32(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeFloat32 failed: %v", err)
	}

	decoded, _, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decoded[0] != 32767 || decoded[1] != -32767 {
		t.Errorf("Expected clipped samples [32767 -32767], got %v", decoded)
	}
}

func TestEncodeWAVErrors(t *testing.T) {
	if _, err := EncodeWAV([]int16{}, 8000); err == nil {
		t.Error("Expected error for empty samples")
	}

	if _, err := EncodeWAV([]int16{1, 2, 3}, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}

	if _, err := EncodeFloat32(nil, 16000); err == nil {
		t.Error("Expected error for nil samples")
	}
}

func TestDecodeWAVErrors(t *testing.T) {
	if _, _, err := DecodeWAV([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for truncated data")
	}

	wavData, err := EncodeWAV([]int16{1, 2, 3}, 8000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	wavData[0] = 'X'
	if _, _, err := DecodeWAV(wavData); err == nil {
		t.Error("Expected error for corrupted RIFF marker")
	}
}
