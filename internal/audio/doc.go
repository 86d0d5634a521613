// Package audio writes and measures the 16-bit mono WAV files produced per
// chapter, and plays raw PCM through the system audio device for previews,
// synthesizing ahead of playback.
package audio
