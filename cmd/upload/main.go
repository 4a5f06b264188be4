// Command upload sends a file to the archive the same way the website does:
// it fingerprints the file, checks for a duplicate, streams it through the
// relay and adds it to the catalog.
package main

import (
	"bitwise74/course-archive/pkg/client"
	"bitwise74/course-archive/pkg/fingerprint"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	flags := pflag.NewFlagSet("upload", pflag.ExitOnError)
	flags.String("server", "http://localhost:8080", "Archive base URL")
	flags.String("relay", "", "Relay base URL, defaults to --server")
	flags.String("secret", "", "Relay secret")
	flags.String("token", "", "Session token (the auth_token cookie)")
	flags.String("course", "", "Course code, e.g. \"CS F111\"")
	flags.String("year", "", "Academic year, e.g. 2023-24")
	flags.Int("semester", 1, "Semester number")
	flags.String("prof", "", "Professor name")
	flags.String("type", "Lecture Slides", "Resource type, use \"Other\" with --other-type for anything else")
	flags.String("other-type", "", "Free text type when --type is Other")
	flags.Int64("max-size", 500, "Largest accepted file in MiB")
	flags.Bool("verbose", false, "Debug logging")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: upload [flags] <file>\n\n")
		flags.PrintDefaults()
	}
	flags.Parse(os.Args[1:])

	v := viper.New()
	v.SetEnvPrefix("ARCHIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.BindPFlags(flags)

	log := makeLogger(v.GetBool("verbose"))
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	c := client.New(v.GetString("server"), v.GetString("token"))
	c.RelayURL = v.GetString("relay")
	c.RelaySecret = v.GetString("secret")
	c.MaxSize = v.GetInt64("max-size") << 20

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r, err := c.Upload(ctx, client.UploadRequest{
		FilePath:  flags.Arg(0),
		CourseID:  v.GetString("course"),
		Year:      v.GetString("year"),
		Semester:  v.GetInt("semester"),
		Prof:      v.GetString("prof"),
		Type:      v.GetString("type"),
		OtherType: v.GetString("other-type"),
	}, func(pct int) {
		fmt.Fprintf(os.Stderr, "\rUploading... %3d%%", pct)
		if pct == 100 {
			fmt.Fprintln(os.Stderr)
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr)
		log.Error(message(err), zap.Error(err))
		os.Exit(1)
	}

	log.Info("Uploaded",
		zap.String("id", r.ID),
		zap.String("course", r.CourseID),
		zap.String("path", r.StoragePath),
	)
}

// message turns pipeline errors into what the website would show
func message(err error) string {
	switch {
	case errors.Is(err, fingerprint.ErrNoFile):
		return "Please select a file"
	case errors.Is(err, fingerprint.ErrFileTooLarge):
		return "File is too large"
	case errors.Is(err, client.ErrInvalidInput):
		return "Please fill in every field"
	case errors.Is(err, client.ErrDuplicate):
		return "This file has already been uploaded"
	case errors.Is(err, client.ErrStoreFailed):
		return "Upload failed"
	case errors.Is(err, client.ErrMalformedResponse):
		return "Unexpected response from the server"
	case errors.Is(err, context.Canceled):
		return "Upload cancelled"
	default:
		return "Upload failed"
	}
}

func makeLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}

	return log
}
