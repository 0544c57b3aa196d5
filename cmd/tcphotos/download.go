package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tcphotos/internal/downloader"
	"tcphotos/pkg/auth"
	"tcphotos/pkg/cache"
	"tcphotos/pkg/checkpoint"
	"tcphotos/pkg/classroom"
	"tcphotos/pkg/config"
	"tcphotos/pkg/crawler"
	tcerrors "tcphotos/pkg/errors"
	"tcphotos/pkg/logger"
	"tcphotos/pkg/storage"
	"tcphotos/pkg/ui"
)

var (
	// Download command flags
	cookieFile  string
	baseURL     string
	useCache    bool
	noCache     bool
	accountName string
	startPage   int
	maxPages    int
	pageDelay   time.Duration
	notify      bool
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download every photo posted for your child",
	Long: `Sign in, walk every observations page and download each attached photo.

Credentials are taken from, in order:
  - command line flags and environment variables (TC_EMAIL, TC_PASSWORD, SCHOOL, CHILD)
  - the configuration file
  - the account stored by 'tcphotos setup' or 'tcphotos auth login'

Photos are named <post id>_max.jpg, or <post id>_<n>_max.jpg for posts with
several photos. Existing files are skipped.`,
	Example: `  # Download using the stored account
  tcphotos download

  # Preview without writing anything
  tcphotos download --dry-run

  # Use cookies exported from a signed-in browser
  tcphotos download --cookies cookies.txt

  # Re-read cached listing pages for an hour
  tcphotos download --cache`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := map[string]interface{}{
			"cookies":  cookieFile,
			"base-url": baseURL,
			"cache":    useCache,
			"no-cache": noCache,
		}
		cfg, err := loadConfig(flags, accountName)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return tcerrors.Wrap(tcerrors.ErrorTypeConfiguration, err, "configuration validation failed: %v", err)
		}

		log, err := initLogger(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ui.PrintBanner()
		if dryRun {
			ui.PrintHighlight("Dry run: nothing will be written")
		}

		summary, err := runDownload(ctx, cfg, downloadOptions{
			DryRun:    dryRun,
			StartPage: startPage,
			MaxPages:  maxPages,
			PageDelay: pageDelay,
			Verbose:   verbose,
		}, log, ui.Output())

		notifier := ui.NewNotifier(notify)
		if err != nil {
			if tcerrors.IsType(err, tcerrors.ErrorTypeAuthentication) {
				auth.ShowCookieGuide(ui.Output())
			}
			notifier.SendError("Download failed", err.Error())
			return err
		}

		if !ui.IsQuiet() {
			ui.RenderSummary(ui.Output(), summary)
		}
		notifier.SendSuccess("Download complete",
			fmt.Sprintf("%d new photos, %d already present", summary.Downloaded, summary.Skipped))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	for _, fs := range []*cobra.Command{downloadCmd, rootCmd} {
		fs.Flags().StringVar(&cookieFile, "cookies", "", "Netscape cookie file exported from a signed-in browser")
		fs.Flags().StringVar(&baseURL, "base-url", "", "portal base URL (default https://www.transparentclassroom.com/schools/<SCHOOL>)")
		fs.Flags().BoolVar(&useCache, "cache", false, "cache listing pages on disk")
		fs.Flags().BoolVar(&noCache, "no-cache", false, "ignore the page cache even if enabled in the config")
		fs.Flags().StringVarP(&accountName, "account", "a", "", "use the stored account with this email")
		fs.Flags().IntVar(&startPage, "start-page", 0, "first listing page to fetch")
		fs.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages (0 means all)")
		fs.Flags().DurationVar(&pageDelay, "page-delay", 0, "pause between listing pages (default 500ms)")
		fs.Flags().BoolVar(&notify, "notify", false, "show a desktop notification when done")
	}
}

// downloadOptions are the per-run switches that are not part of Config
type downloadOptions struct {
	DryRun    bool
	StartPage int
	MaxPages  int
	PageDelay time.Duration
	Verbose   bool
}

// runDownload signs in, crawls every page and downloads all photos. Per-photo
// failures are counted in the summary; only sign-in, crawl and setup
// failures are returned.
func runDownload(ctx context.Context, cfg *config.Config, opts downloadOptions, log logger.Logger, out io.Writer) (ui.Summary, error) {
	start := time.Now()
	summary := ui.Summary{
		Child:     strconv.FormatUint(cfg.Portal.ChildID, 10),
		OutputDir: cfg.Output.Directory,
	}

	client, err := classroom.NewClient(classroom.OptionsFromConfig(cfg, log))
	if err != nil {
		return summary, err
	}

	if cfg.HTTP.CookieFile != "" {
		if _, err := client.LoadCookieFile(cfg.HTTP.CookieFile); err != nil {
			return summary, err
		}
	}

	state, err := client.Login(ctx)
	if err != nil {
		return summary, err
	}
	summary.AuthMethod = state.String()

	source, err := pageSource(client, cfg, log)
	if err != nil {
		return summary, err
	}

	var ledger downloader.Recorder
	if cfg.History.Enabled && !opts.DryRun {
		l, err := checkpoint.Open(ctx, cfg.History.Path, log)
		if err != nil {
			log.WithError(err).Warn("Download history unavailable, continuing without it")
		} else {
			defer l.Close()
			ledger = l
		}
	}

	progress := ui.NewProgressDisplay(out, "child "+summary.Child, opts.Verbose)
	if ui.IsQuiet() {
		progress = ui.NewProgressDisplay(io.Discard, "", false)
	}
	defer progress.Complete()

	dl, err := downloader.New(client, downloader.Options{
		OutputDir: cfg.Output.Directory,
		Location: downloader.Location{
			Latitude:  cfg.School.Latitude,
			Longitude: cfg.School.Longitude,
			Keywords:  cfg.School.Keywords,
		},
		Attempts:  cfg.HTTP.DownloadAttempts,
		PerMinute: cfg.HTTP.DownloadsPerMinute,
		DryRun:    opts.DryRun,
		Ledger:    ledger,
		OnPhoto: func(post classroom.Post, index int, path string, outcome downloader.Outcome, err error) {
			name := storage.PhotoFilename(post.ID, index, len(post.PhotoURLs))
			switch outcome {
			case downloader.Failed:
				progress.PhotoFailed(name, err)
			case downloader.Skipped:
				progress.PhotoDone(name, true)
			default:
				progress.PhotoDone(name, false)
			}
		},
		Logger: log,
	})
	if err != nil {
		return summary, err
	}

	c := crawler.New(source, crawler.Options{
		PageDelay: opts.PageDelay,
		StartPage: opts.StartPage,
		MaxPages:  opts.MaxPages,
		OnPage: func(page int, posts []classroom.Post, total int) {
			summary.Pages++
			progress.PageFetched(page, len(posts), countPhotos(posts))
		},
		Logger: log,
	})

	posts, err := c.Crawl(ctx)
	if err != nil {
		return summary, err
	}
	summary.Posts = len(posts)
	summary.Photos = countPhotos(posts)

	if len(posts) == 0 {
		log.Warn("No posts found for this child")
	}

	for _, post := range posts {
		if !post.HasPhotos() {
			continue
		}
		if _, err := dl.DownloadAll(ctx, post); err != nil {
			return summary, err
		}
	}

	stats := dl.Stats()
	summary.Downloaded = stats.Downloaded
	summary.Skipped = stats.Skipped
	summary.Planned = stats.Planned
	summary.Failed = stats.Failed
	summary.Elapsed = time.Since(start)

	log.InfoWithFields("Download run finished", map[string]interface{}{
		"posts":      summary.Posts,
		"photos":     summary.Photos,
		"downloaded": summary.Downloaded,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	})
	return summary, nil
}

// pageSource wraps the client in the page cache when it is enabled
func pageSource(client *classroom.Client, cfg *config.Config, log logger.Logger) (crawler.PageSource, error) {
	if !cfg.Cache.Enabled {
		return client, nil
	}
	store, err := cache.NewStore(cfg.Cache.Directory, cfg.Cache.MaxAge)
	if err != nil {
		return nil, err
	}
	log.WithField("dir", store.Dir()).Debug("Using page cache")
	return crawler.NewCachedSource(client, store, cfg.Portal.SchoolID, cfg.Portal.ChildID, log), nil
}

func countPhotos(posts []classroom.Post) int {
	n := 0
	for _, p := range posts {
		n += len(p.PhotoURLs)
	}
	return n
}
