// Command flowctl browses the catalog from a terminal and keeps a local
// "My List" file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/afero"

	"github.com/liamwears/flowkh/internal/config"
	"github.com/liamwears/flowkh/internal/models"
	"github.com/liamwears/flowkh/internal/services"
	"github.com/liamwears/flowkh/internal/watchlist"
)

const usage = `usage: flowctl [-json] <command> [args]

commands:
  rows [view]                 rows of a view (home, movies, tv, anime)
  category <key> [page]       one page of a row
  detail <movie|tv> <id>      title details, cast and similar titles
  person <id>                 a person and their credits
  search [flags] <query>      search (-type multi|movie|tv, -page n)
  discover [flags] <movie|tv> filtered listing (-genres, -country, -year, -sort, -page)
  list                        titles saved to My List
  toggle <movie|tv> <id>      add a title to My List or remove it
`

var errUsage = errors.New("invalid usage")

type app struct {
	catalog   *services.CatalogService
	watchlist *watchlist.Store
	out       io.Writer
	asJSON    bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := log.New(os.Stderr, "[flowctl] ", log.LstdFlags)
	tmdb := services.NewTMDBService(services.TMDBConfig{
		APIKey:       cfg.TMDB.APIKey,
		ReadToken:    cfg.TMDB.ReadToken,
		BaseURL:      cfg.TMDB.BaseURL,
		ImageBaseURL: cfg.TMDB.ImageBaseURL,
		Logger:       logger,
	})

	a := &app{
		catalog:   services.NewCatalogService(tmdb, nil, nil, logger),
		watchlist: watchlist.NewStore(afero.NewOsFs(), cfg.Watchlist.Path),
		out:       os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		logger.Fatalf("%v", err)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	global := flag.NewFlagSet("flowctl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	global.BoolVar(&a.asJSON, "json", false, "print JSON")
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	args = global.Args()
	if len(args) == 0 {
		return errUsage
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "rows":
		return a.rows(ctx, args)
	case "category":
		return a.category(ctx, args)
	case "detail":
		return a.detail(ctx, args)
	case "person":
		return a.person(ctx, args)
	case "search":
		return a.search(ctx, args)
	case "discover":
		return a.discover(ctx, args)
	case "list":
		return a.list()
	case "toggle":
		return a.toggle(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func parseTitleArgs(args []string) (models.MediaType, int, error) {
	if len(args) != 2 {
		return "", 0, errUsage
	}
	mediaType, err := models.ParseMediaType(args[0])
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", errUsage, err)
	}
	id, err := strconv.Atoi(args[1])
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("%w: invalid id %q", errUsage, args[1])
	}
	return mediaType, id, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printMovies(movies []models.Movie) error {
	if a.asJSON {
		return a.printJSON(movies)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, m := range movies {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%.1f\t%s\n", m.MediaType, m.ID, m.Title, m.ReleaseYear, m.Rating, strings.Join(m.Genres, ", "))
	}
	return tw.Flush()
}

func (a *app) rows(ctx context.Context, args []string) error {
	view := services.ViewHome
	if len(args) > 0 {
		view = args[0]
	}

	rows, err := a.catalog.FetchMoviesData(ctx, view)
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(rows)
	}
	for _, row := range rows {
		fmt.Fprintf(a.out, "== %s (%s)\n", row.Title, row.Key)
		if err := a.printMovies(row.Movies); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) category(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	page := 1
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: invalid page %q", errUsage, args[1])
		}
		page = n
	}

	result, err := a.catalog.FetchCategoryPageData(ctx, args[0], page)
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(result)
	}
	fmt.Fprintf(a.out, "page %d of %d\n", page, result.TotalPages)
	return a.printMovies(result.Results)
}

func (a *app) detail(ctx context.Context, args []string) error {
	mediaType, id, err := parseTitleArgs(args)
	if err != nil {
		return err
	}

	page, err := a.catalog.FetchDetailPageData(ctx, id, mediaType)
	if err != nil {
		return err
	}
	if page == nil {
		return ctx.Err()
	}
	if a.asJSON {
		return a.printJSON(page)
	}

	d := page.Details
	fmt.Fprintf(a.out, "%s (%s)  %.1f  %d min\n", d.Title, d.ReleaseYear, d.Rating, d.Runtime)
	if len(d.Genres) > 0 {
		fmt.Fprintln(a.out, strings.Join(d.Genres, ", "))
	}
	fmt.Fprintf(a.out, "\n%s\n", d.Description)
	if d.TrailerURL != "" {
		fmt.Fprintf(a.out, "\ntrailer: %s\n", d.TrailerURL)
	}
	for _, s := range d.Seasons {
		fmt.Fprintf(a.out, "season %d: %d episodes\n", s.SeasonNumber, s.EpisodeCount)
	}
	if len(page.Cast) > 0 {
		fmt.Fprintln(a.out, "\ncast:")
		for _, c := range page.Cast {
			fmt.Fprintf(a.out, "  %s as %s\n", c.Name, c.Character)
		}
	}
	if len(page.Similar) > 0 {
		fmt.Fprintln(a.out, "\nsimilar:")
		return a.printMovies(page.Similar)
	}
	return nil
}

func (a *app) person(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return fmt.Errorf("%w: invalid id %q", errUsage, args[0])
	}

	page, err := a.catalog.FetchActorCredits(ctx, id)
	if err != nil {
		return err
	}
	if page == nil {
		return ctx.Err()
	}
	if a.asJSON {
		return a.printJSON(page)
	}
	fmt.Fprintf(a.out, "%s  %s\n\n", page.Actor.Name, page.Actor.KnownForDepartment)
	return a.printMovies(page.Credits)
}

func (a *app) search(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	kind := fs.String("type", services.SearchMulti, "multi, movie or tv")
	page := fs.Int("page", 1, "result page")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	query := strings.Join(fs.Args(), " ")
	if query == "" {
		return errUsage
	}

	result, err := a.catalog.SearchContent(ctx, query, *kind, *page)
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(result)
	}
	fmt.Fprintf(a.out, "%d results\n", result.TotalResults)
	return a.printMovies(result.Results)
}

func (a *app) discover(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	genres := fs.String("genres", "", "comma separated genre IDs")
	filters := services.DiscoverFilters{}
	fs.StringVar(&filters.Country, "country", "", "origin country code")
	fs.StringVar(&filters.Year, "year", "", "release year")
	fs.StringVar(&filters.SortBy, "sort", "", "sort order")
	fs.IntVar(&filters.Page, "page", 1, "result page")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}

	mediaType, err := models.ParseMediaType(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	filters.MediaType = mediaType
	for _, g := range strings.Split(*genres, ",") {
		if g = strings.TrimSpace(g); g == "" {
			continue
		}
		id, err := strconv.Atoi(g)
		if err != nil {
			return fmt.Errorf("%w: invalid genre %q", errUsage, g)
		}
		filters.Genres = append(filters.Genres, id)
	}

	result, err := a.catalog.FetchDiscoverResults(ctx, filters)
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(result)
	}
	return a.printMovies(result.Results)
}

func (a *app) list() error {
	movies, err := a.watchlist.List()
	if err != nil {
		return err
	}
	if len(movies) == 0 && !a.asJSON {
		fmt.Fprintln(a.out, "My List is empty")
		return nil
	}
	return a.printMovies(movies)
}

func (a *app) toggle(ctx context.Context, args []string) error {
	mediaType, id, err := parseTitleArgs(args)
	if err != nil {
		return err
	}

	page, err := a.catalog.FetchDetailPageData(ctx, id, mediaType)
	if err != nil {
		return err
	}
	if page == nil {
		return ctx.Err()
	}

	saved, err := a.watchlist.Toggle(page.Details.Movie)
	if err != nil {
		return err
	}
	if saved {
		fmt.Fprintf(a.out, "Added %s to My List\n", page.Details.Title)
	} else {
		fmt.Fprintf(a.out, "Removed %s from My List\n", page.Details.Title)
	}
	return nil
}
