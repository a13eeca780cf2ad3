package backend

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"

	"github.com/desertthunder/melodify/internal/models"
	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

// openLocator opens a local path, file:// URL or http(s) URL. For HTTP sources the response
// Content-Type is returned so streaming tracks can be decoded by their actual encoding.
func openLocator(ctx context.Context, client *http.Client, locator string) (io.ReadCloser, string, error) {
	u, err := url.Parse(locator)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
			if err != nil {
				return nil, "", err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, "", err
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
			}
			return resp.Body, resp.Header.Get("Content-Type"), nil
		case "file":
			locator = u.Path
		}
	}

	f, err := os.Open(locator)
	if err != nil {
		return nil, "", err
	}
	return f, "", nil
}

// resolveFormat maps "streaming" and unknown formats to a concrete encoding using the
// response content type or the locator's extension. MP3 is the fallback for catalog streams.
func resolveFormat(track models.Track, contentType string) models.AudioFormat {
	if track.Format != models.FormatStreaming && track.Format.Valid() {
		return track.Format
	}

	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			switch mt {
			case "audio/mpeg", "audio/mp3":
				return models.FormatMP3
			case "audio/wav", "audio/x-wav", "audio/wave":
				return models.FormatWAV
			case "audio/flac", "audio/x-flac":
				return models.FormatFLAC
			case "audio/ogg", "audio/vorbis", "application/ogg":
				return models.FormatOGG
			case "audio/opus":
				return models.FormatOpus
			case "audio/aac", "audio/mp4", "audio/x-m4a":
				return models.FormatAAC
			}
		}
	}

	path := track.URL
	if u, err := url.Parse(track.URL); err == nil && u.Path != "" {
		path = u.Path
	}
	if f, ok := models.FormatFromPath(path); ok {
		return f
	}
	return models.FormatMP3
}

// decode wraps rc in a beep decoder for format. On error rc is closed.
func decode(rc io.ReadCloser, format models.AudioFormat) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)

	switch format {
	case models.FormatMP3:
		s, f, err = mp3.Decode(rc)
	case models.FormatWAV:
		s, f, err = wav.Decode(rc)
	case models.FormatFLAC:
		s, f, err = flac.Decode(rc)
	case models.FormatOGG:
		s, f, err = vorbis.Decode(rc)
	case models.FormatOpus:
		s, f, err = decodeOpus(rc)
	default:
		err = fmt.Errorf("no decoder for format %q", format)
	}

	if err != nil {
		rc.Close()
		return nil, beep.Format{}, err
	}
	return s, f, nil
}

// ProbeDuration decodes the header of a local file and returns its length in seconds.
// It returns 0 for formats whose length is not known up front.
func ProbeDuration(path string) (float64, error) {
	format, ok := models.FormatFromPath(path)
	if !ok {
		return 0, fmt.Errorf("unrecognized audio file %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}

	s, bf, err := decode(f, format)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	if s.Len() <= 0 {
		return 0, nil
	}
	return bf.SampleRate.D(s.Len()).Seconds(), nil
}
