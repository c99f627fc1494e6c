package audiocapture

import (
	"net/http"
	"strings"
)

// Payload is the finalized audio of one recording.
type Payload struct {
	Data      []byte
	MediaType string
}

// Finalize concatenates chunks in order into a single payload.
func Finalize(chunks [][]byte, mediaType string) Payload {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	if size == 0 {
		return Payload{MediaType: mediaType}
	}

	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}
	return Payload{Data: data, MediaType: mediaType}
}

// Empty reports whether the payload holds no audio.
func (p Payload) Empty() bool {
	return len(p.Data) == 0
}

var extensions = map[string]string{
	MediaTypeOgg: "ogg",
	"audio/webm": "webm",
	"audio/wav":  "wav",
	"audio/mpeg": "mp3",
	"audio/mp4":  "m4a",
	"audio/flac": "flac",
}

// Extension returns the file extension for the payload's media type,
// without the dot. Unknown types map to "ogg".
func (p Payload) Extension() string {
	base, _, _ := strings.Cut(p.MediaType, ";")
	if ext, ok := extensions[strings.TrimSpace(base)]; ok {
		return ext
	}
	return "ogg"
}

// sniffed maps content types reported by http.DetectContentType to the
// audio media types the transcription service accepts.
var sniffed = map[string]string{
	"application/ogg": MediaTypeOgg,
	"audio/wave":      "audio/wav",
	"video/webm":      "audio/webm",
	"audio/mpeg":      "audio/mpeg",
}

// Sniff wraps audio recorded elsewhere, such as by the frontend, in a
// payload whose media type is guessed from its leading bytes. Unrecognized
// data is assumed to be WebM, the browser recorder default.
func Sniff(data []byte) Payload {
	mt, ok := sniffed[http.DetectContentType(data)]
	if !ok {
		mt = "audio/webm"
	}
	return Payload{Data: data, MediaType: mt}
}
