// Package source provides wideband IQ block sources: rfcap capture streams,
// raw interleaved uint8 IQ (the rtl_sdr pipe format), and a deterministic
// synthetic generator for tests and dry runs.
package source
