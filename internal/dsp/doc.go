// Package dsp implements the wideband channelizer: per-channel frequency
// mixing, zero-phase Butterworth lowpass filtering, decimation, NBFM
// demodulation and resampling to the 16 kHz output audio rate.
package dsp
