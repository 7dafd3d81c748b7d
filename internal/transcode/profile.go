package transcode

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"

	"cadence/internal/config"
)

// Profile fixes the output codec and container. It comes from configuration,
// never from user input.
type Profile struct {
	Codec      string
	Bitrate    string
	Quality    int
	StripVideo bool
	StripAudio bool
	Format     string
	Extension  string
}

// ProfileFromConfig builds the conversion profile from the transcode section.
func ProfileFromConfig(cfg config.Transcode) Profile {
	return Profile{
		Codec:      cfg.Codec,
		Bitrate:    cfg.Bitrate,
		Quality:    cfg.Quality,
		StripVideo: cfg.StripVideo,
		StripAudio: cfg.StripAudio,
		Format:     cfg.Format,
		Extension:  cfg.Extension,
	}
}

// Validate reports profile combinations ffmpeg cannot satisfy.
func (p Profile) Validate() error {
	if p.StripVideo && p.StripAudio {
		return errors.New("profile strips both audio and video")
	}
	if !p.StripAudio && strings.TrimSpace(p.Codec) == "" {
		return errors.New("profile codec is required")
	}
	if strings.TrimSpace(p.Extension) == "" {
		return errors.New("profile extension is required")
	}
	return nil
}

// Args builds the ffmpeg argument list for one conversion. Bitrate takes
// precedence over VBR quality when both are set.
func (p Profile) Args(inputPath, outputPath string) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y", "-i", inputPath}
	if p.StripVideo {
		args = append(args, "-vn")
	}
	if p.StripAudio {
		args = append(args, "-an")
	} else if codec := strings.TrimSpace(p.Codec); codec != "" {
		args = append(args, "-c:a", codec)
		if bitrate := strings.TrimSpace(p.Bitrate); bitrate != "" {
			args = append(args, "-b:a", bitrate)
		} else {
			args = append(args, "-q:a", strconv.Itoa(p.Quality))
		}
	}
	if format := strings.TrimSpace(p.Format); format != "" {
		args = append(args, "-f", format)
	}
	return append(args, outputPath)
}

// DownloadName derives the file name offered to the client from the
// original upload name, swapping its extension for the profile's.
func (p Profile) DownloadName(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(originalName), `\`, "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "converted"
	}
	ext := strings.TrimPrefix(p.Extension, ".")
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}
