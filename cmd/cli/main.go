package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/yuna-go/internal/app"
	"github.com/yourusername/yuna-go/internal/domain"
	"github.com/yourusername/yuna-go/pkg/logger"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "yuna",
		Short: "Yuna CLI - keeps an anime, series and film library up to date",
		Long: `A command-line interface for the Yuna server: track anime, series and films
from streaming catalogs and download missing episodes into the media library.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(downloadsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(episodesCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(associateCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var listCmd = &cobra.Command{
	Use:   "list [kind]",
	Short: "List library entries of a kind (anime, series, films)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseMediaKind(args[0])
		if err != nil {
			return err
		}
		ensureServer()

		var entries []domain.LibraryEntry
		if err := call(http.MethodGet, "/api/"+kind.PathSegment(), nil, &entries); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPROVIDER\tPROGRESS\tYEAR\tADDED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				truncate(e.Name, 40),
				e.Provider,
				progress(&e),
				e.Year,
				e.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var addCmd = &cobra.Command{
	Use:   "add [kind] [url]",
	Short: "Start tracking a catalog title",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseMediaKind(args[0])
		if err != nil {
			return err
		}
		ensureServer()

		name, _ := cmd.Flags().GetString("name")
		catalogID, _ := cmd.Flags().GetString("catalog-id")
		req := app.AddRequest{URL: args[1], Name: name, CatalogID: catalogID}

		var entry domain.LibraryEntry
		if err := call(http.MethodPost, "/api/"+kind.PathSegment(), req, &entry); err != nil {
			return err
		}

		fmt.Printf("Added %s %q\n", entry.Kind, entry.Name)
		fmt.Printf("  Provider: %s\n", entry.Provider)
		fmt.Printf("  Progress: %s\n", progress(&entry))
		if entry.CatalogID != "" {
			fmt.Printf("  Catalog:  %s\n", entry.CatalogID)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [kind] [name]",
	Short: "Show a library entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseMediaKind(args[0])
		if err != nil {
			return err
		}
		ensureServer()

		var entry domain.LibraryEntry
		if err := call(http.MethodGet, entryPath(kind.PathSegment(), args[1]), nil, &entry); err != nil {
			return err
		}
		printJSON(entry)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove [kind] [name]",
	Short: "Stop tracking an entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseMediaKind(args[0])
		if err != nil {
			return err
		}
		ensureServer()

		deleteFiles, _ := cmd.Flags().GetBool("delete-files")
		path := entryPath(kind.PathSegment(), args[1]) + "?delete_files=" + strconv.FormatBool(deleteFiles)
		if err := call(http.MethodDelete, path, nil, nil); err != nil {
			return err
		}
		fmt.Println("Entry removed")
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [kind] [name]",
	Short: "Re-check how many episodes the provider has",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseMediaKind(args[0])
		if err != nil {
			return err
		}
		ensureServer()

		var entry domain.LibraryEntry
		if err := call(http.MethodPost, entryPath(kind.PathSegment(), args[1], "refresh"), nil, &entry); err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", entry.Name, progress(&entry))
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync [kind] [name]",
	Short: "Download the missing episodes of an entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseMediaKind(args[0])
		if err != nil {
			return err
		}
		ensureServer()

		if err := call(http.MethodPost, entryPath(kind.PathSegment(), args[1], "download"), nil, nil); err != nil {
			return err
		}
		fmt.Println("Sync started")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [kind] [name]",
	Short: "Show the sync state of an entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseMediaKind(args[0])
		if err != nil {
			return err
		}
		ensureServer()

		var status struct {
			InFlight  bool                  `json:"in_flight"`
			LastEvent *domain.ProgressEvent `json:"last_event"`
		}
		if err := call(http.MethodGet, entryPath(kind.PathSegment(), args[1], "download", "status"), nil, &status); err != nil {
			return err
		}

		fmt.Printf("In flight: %v\n", status.InFlight)
		if e := status.LastEvent; e != nil {
			fmt.Printf("Last event: %s", e.Type)
			if e.Episode != nil {
				fmt.Printf(" (episode %d)", *e.Episode)
			}
			if e.Progress != nil {
				fmt.Printf(" %.1f%%", *e.Progress)
			}
			if e.Error != "" {
				fmt.Printf(" error: %s", e.Error)
			}
			fmt.Printf(" at %s\n", e.Timestamp.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [kind] [name]",
	Short: "Cancel an in-flight sync",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseMediaKind(args[0])
		if err != nil {
			return err
		}
		ensureServer()

		if err := call(http.MethodDelete, entryPath(kind.PathSegment(), args[1], "download"), nil, nil); err != nil {
			return err
		}
		fmt.Println("Sync cancelled")
		return nil
	},
}

var downloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "List entries currently syncing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		var result struct {
			Count   int               `json:"count"`
			Entries []domain.EntryKey `json:"entries"`
		}
		if err := call(http.MethodGet, "/api/downloads", nil, &result); err != nil {
			return err
		}
		if result.Count == 0 {
			fmt.Println("Nothing in flight")
			return nil
		}
		for _, key := range result.Entries {
			fmt.Println(key.String())
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [kind] [query]",
	Short: "Search the catalogs (or metadata APIs with --metadata)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseMediaKind(args[0])
		if err != nil {
			return err
		}
		ensureServer()

		path := "/api/search"
		if metadata, _ := cmd.Flags().GetBool("metadata"); metadata {
			path = "/api/metadata/search"
		}
		query := url.Values{"kind": {string(kind)}, "q": {args[1]}}

		var results []domain.CandidateResult
		if err := call(http.MethodGet, path+"?"+query.Encode(), nil, &results); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tYEAR\tPROVIDER\tID\tURL")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				truncate(r.Name, 40), r.Year, r.Provider, r.ID, r.URL)
		}
		return w.Flush()
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a scanner pass over the whole library",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		if err := call(http.MethodPost, "/api/scan", nil, nil); err != nil {
			return err
		}
		fmt.Println("Scan started")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		var stats domain.LibraryStats
		if err := call(http.MethodGet, "/api/stats", nil, &stats); err != nil {
			return err
		}

		fmt.Println("Library Statistics:")
		fmt.Printf("  Anime:      %d\n", stats.Anime)
		fmt.Printf("  Series:     %d\n", stats.Series)
		fmt.Printf("  Films:      %d (%d downloaded)\n", stats.Films, stats.FilmsDownloaded)
		fmt.Printf("  Episodes:   %d downloaded\n", stats.EpisodesDownloaded)
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "View server logs (download, events, scan, error)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := logger.LogCategory(args[0])
		if !logger.IsValidCategory(category) {
			return fmt.Errorf("unknown log category %q", args[0])
		}
		ensureServer()

		limit, _ := cmd.Flags().GetInt("limit")
		date, _ := cmd.Flags().GetString("date")
		search, _ := cmd.Flags().GetString("search")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		path := "/api/logs/" + string(category)
		query := url.Values{"limit": {strconv.Itoa(limit)}}
		if date != "" {
			query.Set("date", date)
		}
		if search != "" {
			path += "/search"
			query.Set("q", search)
		}

		var result struct {
			Entries []logger.LogEntry `json:"entries"`
		}
		if err := call(http.MethodGet, path+"?"+query.Encode(), nil, &result); err != nil {
			return err
		}

		if jsonOutput {
			printJSON(result.Entries)
			return nil
		}
		for _, e := range result.Entries {
			if e.Timestamp != "" {
				fmt.Printf("%s %-5s %s\n", e.Timestamp, e.Level, e.Message)
			} else {
				fmt.Println(e.Message)
			}
		}
		return nil
	},
}

var episodesCmd = &cobra.Command{
	Use:   "episodes [kind] [name]",
	Short: "Show which episodes of an entry are on disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseMediaKind(args[0])
		if err != nil {
			return err
		}
		ensureServer()

		var list domain.EpisodeList
		if err := call(http.MethodGet, entryPath(kind.PathSegment(), args[1], "episodes"), nil, &list); err != nil {
			return err
		}

		fmt.Printf("%s: %d/%d downloaded", list.Name, list.Downloaded, list.Total)
		if list.Complete {
			fmt.Print(" (complete)")
		}
		fmt.Println()
		if len(list.Missing) > 0 {
			fmt.Printf("Missing: %v\n", list.Missing)
		}
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit [kind] [name]",
	Short: "Change the metadata of an entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseMediaKind(args[0])
		if err != nil {
			return err
		}

		var update app.MetadataUpdate
		flags := cmd.Flags()
		if flags.Changed("catalog-id") {
			v, _ := flags.GetString("catalog-id")
			update.CatalogID = &v
		}
		if flags.Changed("synopsis") {
			v, _ := flags.GetString("synopsis")
			update.Synopsis = &v
		}
		if flags.Changed("year") {
			v, _ := flags.GetString("year")
			update.Year = &v
		}
		if flags.Changed("rating") {
			v, _ := flags.GetFloat64("rating")
			update.Rating = &v
		}
		if flags.Changed("genre") {
			update.Genres, _ = flags.GetStringSlice("genre")
		}
		ensureServer()

		var entry domain.LibraryEntry
		if err := call(http.MethodPatch, entryPath(kind.PathSegment(), args[1]), update, &entry); err != nil {
			return err
		}
		printJSON(entry)
		return nil
	},
}

var associateCmd = &cobra.Command{
	Use:   "associate [kind] [name] [url]",
	Short: "Point an entry at another catalog page",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseMediaKind(args[0])
		if err != nil {
			return err
		}
		ensureServer()

		var entry domain.LibraryEntry
		req := app.AssociateRequest{URL: args[2]}
		if err := call(http.MethodPost, entryPath(kind.PathSegment(), args[1], "associate-provider"), req, &entry); err != nil {
			return err
		}
		fmt.Printf("%s now follows %s (%s)\n", entry.Name, entry.SourceURL, entry.Provider)
		fmt.Printf("  Progress: %s\n", progress(&entry))
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in and save the access token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("YUNA_PASSWORD")
		}
		if password == "" {
			return fmt.Errorf("password required (--password or YUNA_PASSWORD)")
		}
		ensureServer()

		var token app.Token
		body := map[string]string{"username": args[0], "password": password}
		if err := call(http.MethodPost, "/api/login", body, &token); err != nil {
			return err
		}
		if err := saveToken(token.AccessToken); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		fmt.Printf("Logged in as %s, token valid for %s\n", args[0], time.Duration(token.ExpiresIn)*time.Second)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.Remove(tokenFile()); err != nil && !os.IsNotExist(err) {
			return err
		}
		fmt.Println("Logged out")
		return nil
	},
}

func init() {
	addCmd.Flags().StringP("name", "n", "", "Library name (defaults to the catalog title)")
	addCmd.Flags().String("catalog-id", "", "MyAnimeList or TMDB id used for metadata")
	removeCmd.Flags().Bool("delete-files", false, "Also delete the entry folder")
	searchCmd.Flags().BoolP("metadata", "m", false, "Search metadata APIs instead of catalogs")
	logsCmd.Flags().IntP("limit", "l", 100, "Number of entries")
	logsCmd.Flags().StringP("date", "d", "", "Date (YYYY-MM-DD), defaults to today")
	logsCmd.Flags().StringP("search", "s", "", "Only entries matching this text")
	logsCmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	editCmd.Flags().String("catalog-id", "", "MyAnimeList or TMDB id, refetches metadata")
	editCmd.Flags().String("synopsis", "", "Synopsis")
	editCmd.Flags().String("year", "", "Release year")
	editCmd.Flags().Float64("rating", 0, "Rating from 0 to 10")
	editCmd.Flags().StringSlice("genre", nil, "Genres (repeatable)")
	loginCmd.Flags().StringP("password", "p", "", "Password (defaults to YUNA_PASSWORD)")
}

// progress renders downloaded/total, or the film state
func progress(e *domain.LibraryEntry) string {
	if e.Kind == domain.KindFilm {
		if e.Downloaded {
			return "downloaded"
		}
		return "missing"
	}
	if e.EpisodesTotal == nil {
		return fmt.Sprintf("%d/?", e.EpisodesDownloaded)
	}
	return fmt.Sprintf("%d/%d", e.EpisodesDownloaded, *e.EpisodesTotal)
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitOnError(err)
	}
}
