// Command catma converts CoNLL-2012 and HotCorefDe annotation exports
// into CATMA TEI annotation collections, and manages imported
// collections in a local database.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/forTEXT/catma-go/core/cas"
	"github.com/forTEXT/catma-go/core/catma"
	"github.com/forTEXT/catma-go/core/sqlite"
	"github.com/forTEXT/catma-go/internal/api"
	"github.com/forTEXT/catma-go/internal/convert"
	"github.com/forTEXT/catma-go/internal/fileutil"
	"github.com/forTEXT/catma-go/internal/formats/tei"
	"github.com/forTEXT/catma-go/internal/logging"
	"github.com/forTEXT/catma-go/internal/store"
)

const version = "0.3.0"

// CLI defines the command-line interface for catma.
var CLI struct {
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level"`
	LogFormat string `name:"log-format" default:"json" enum:"json,text" help:"Log output format"`

	Convert ConvertCmd `cmd:"" help:"Convert an annotation export to a CATMA TEI collection"`
	Detect  DetectCmd  `cmd:"" help:"Detect the format of an annotation file"`
	Inspect InspectCmd `cmd:"" help:"Show the contents of a TEI annotation collection"`
	Merge   MergeCmd   `cmd:"" help:"Merge TEI annotation collections into one"`
	DB      DBGroup    `cmd:"" help:"Collection database operations"`
	Serve   ServeCmd   `cmd:"" help:"Start the REST API server"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// DBGroup contains collection database operations.
type DBGroup struct {
	Import DBImportCmd `cmd:"" help:"Import a TEI collection into the database"`
	List   DBListCmd   `cmd:"" help:"List imported collections"`
	Query  DBQueryCmd  `cmd:"" help:"Query annotations of an imported collection"`
}

// ConvertCmd converts an annotation export to TEI.
type ConvertCmd struct {
	Path       string `arg:"" help:"Input file (.gz and .xz are decompressed)" type:"existingfile"`
	Out        string `short:"o" help:"Output file (default: stdout)" type:"path"`
	Format     string `short:"f" help:"Input format (default: auto detection)"`
	Author     string `help:"Annotation author recorded in the collection"`
	Title      string `help:"Collection title (default: derived from the input name)"`
	SourceText string `name:"source-text" help:"Annotated source text file" type:"existingfile"`
	SkipBad    bool   `name:"skip-bad-sentences" help:"Skip malformed sentences instead of failing"`
	CacheDir   string `name:"cache-dir" help:"Cache conversion results in this directory" type:"path"`
}

func (c *ConvertCmd) Run() error {
	converter := &convert.Converter{}
	if c.CacheDir != "" {
		cache, err := cas.NewCache(c.CacheDir)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		converter.Cache = cache
	}

	result, err := converter.ConvertFile(c.Path, convert.Options{
		Format:           c.Format,
		Author:           c.Author,
		Title:            c.Title,
		SourceText:       c.SourceText,
		SkipBadSentences: c.SkipBad,
	})
	if err != nil {
		return err
	}

	if c.Out == "" {
		_, err := os.Stdout.Write(result.Data)
		return err
	}
	if err := fileutil.WriteFileAtomic(c.Out, result.Data, 0o644); err != nil {
		return err
	}

	fmt.Printf("Converted: %s (%s)\n", c.Path, result.Format)
	if result.Collection != nil {
		fmt.Printf("  Annotations: %d\n", len(result.Collection.Annotations))
		fmt.Printf("  Text length: %d characters\n", result.Collection.TextLength)
	}
	if result.Skipped > 0 {
		fmt.Printf("  Skipped sentences: %d\n", result.Skipped)
	}
	if result.Cached {
		fmt.Println("  Served from cache")
	}
	fmt.Printf("  SHA-256: %s\n", result.Fingerprint.SHA256)
	fmt.Printf("Created: %s\n", c.Out)
	return nil
}

// DetectCmd detects the format of an annotation file.
type DetectCmd struct {
	Path string `arg:"" help:"File to inspect" type:"existingfile"`
}

func (c *DetectCmd) Run() error {
	data, err := fileutil.ReadInput(c.Path)
	if err != nil {
		return err
	}

	result := convert.Detect(c.Path, data)
	if result == nil || !result.Detected {
		fmt.Printf("%s: format not recognized\n", c.Path)
		fmt.Printf("Known formats: %s\n", strings.Join(convert.Formats(), ", "))
		return fmt.Errorf("unrecognized format")
	}

	fmt.Printf("%s: %s\n", c.Path, result.Format)
	if result.Reason != "" {
		fmt.Printf("  Reason: %s\n", result.Reason)
	}
	return nil
}

// InspectCmd shows the contents of a TEI annotation collection.
type InspectCmd struct {
	Path string `arg:"" help:"TEI collection file" type:"existingfile"`
}

func (c *InspectCmd) Run() error {
	data, err := fileutil.ReadInput(c.Path)
	if err != nil {
		return err
	}

	col, err := tei.Read(data)
	if err != nil {
		return err
	}

	fp := cas.ComputeFingerprint(data)
	fmt.Printf("Collection: %s\n", col.Title)
	fmt.Printf("  Author: %s\n", col.Author)
	fmt.Printf("  Publisher: %s\n", col.Publisher)
	fmt.Printf("  Document ID: %s\n", catma.FormatUUID(col.DocumentID))
	fmt.Printf("  Text length: %d characters\n", col.TextLength)
	fmt.Printf("  SHA-256: %s\n", fp.SHA256)

	for _, ts := range col.Tagsets {
		fmt.Printf("Tagset: %s (version %s)\n", ts.Name, ts.Version)
		for _, tag := range ts.OrderedTags() {
			fmt.Printf("  %s\n", tag.Path())
		}
	}

	counts := make(map[string]int)
	for _, anno := range col.Annotations {
		counts[anno.Tag.Path()]++
	}
	paths := make([]string, 0, len(counts))
	for path := range counts {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	fmt.Printf("Annotations: %d\n", len(col.Annotations))
	for _, path := range paths {
		fmt.Printf("  %s: %d\n", path, counts[path])
	}
	return nil
}

// MergeCmd merges TEI annotation collections into one.
type MergeCmd struct {
	Paths  []string `arg:"" help:"TEI collection files to merge" type:"existingfile"`
	Out    string   `short:"o" required:"" help:"Output file" type:"path"`
	Title  string   `help:"Title of the merged collection (default: first input's)"`
	Author string   `help:"Author of the merged collection (default: first input's)"`
}

func (c *MergeCmd) Run() error {
	if len(c.Paths) < 2 {
		return fmt.Errorf("merge needs at least two input files")
	}

	var merged *catma.Collection
	for _, path := range c.Paths {
		data, err := fileutil.ReadInput(path)
		if err != nil {
			return err
		}
		col, err := tei.Read(data)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if merged == nil {
			merged = col
			continue
		}
		merged = tei.Merge(merged, col, c.Title, c.Author)
	}

	data, err := tei.Write(merged)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(c.Out, data, 0o644); err != nil {
		return err
	}

	fmt.Printf("Merged %d collections into %s\n", len(c.Paths), c.Out)
	fmt.Printf("  Annotations: %d\n", len(merged.Annotations))
	return nil
}

// DBImportCmd imports a TEI collection into the database.
type DBImportCmd struct {
	Path string `arg:"" help:"TEI collection file" type:"existingfile"`
	DB   string `default:"collections.db" help:"Collection database file" type:"path"`
}

func (c *DBImportCmd) Run() error {
	data, err := fileutil.ReadInput(c.Path)
	if err != nil {
		return err
	}
	col, err := tei.Read(data)
	if err != nil {
		return err
	}

	st, err := store.Open(c.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.ImportCollection(context.Background(), col)
	if err != nil {
		return err
	}

	fmt.Printf("Imported: %s\n", col.Title)
	fmt.Printf("  Collection ID: %s\n", id)
	fmt.Printf("  Annotations: %d\n", len(col.Annotations))
	return nil
}

// DBListCmd lists imported collections.
type DBListCmd struct {
	DB string `default:"collections.db" help:"Collection database file" type:"existingfile"`
}

func (c *DBListCmd) Run() error {
	st, err := store.OpenReadOnly(c.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	collections, err := st.Collections(context.Background())
	if err != nil {
		return err
	}
	if len(collections) == 0 {
		fmt.Println("No collections imported")
		return nil
	}

	for _, info := range collections {
		fmt.Printf("%s  %s\n", info.ID, info.Title)
		fmt.Printf("  Author: %s, annotations: %d, text length: %d\n",
			info.Author, info.Annotations, info.TextLength)
	}
	return nil
}

// DBQueryCmd queries annotations of an imported collection.
type DBQueryCmd struct {
	ID    string `arg:"" help:"Collection ID"`
	DB    string `default:"collections.db" help:"Collection database file" type:"existingfile"`
	Tag   string `help:"Filter by tag path (e.g. /Coreference/Coref1)"`
	Start int    `default:"-1" help:"Range query start offset"`
	End   int    `default:"-1" help:"Range query end offset"`
}

func (c *DBQueryCmd) Run() error {
	st, err := store.OpenReadOnly(c.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if _, err := st.Collection(ctx, c.ID); err != nil {
		return err
	}

	switch {
	case c.Tag != "":
		annos, err := st.AnnotationsByTagPath(ctx, c.ID, c.Tag)
		if err != nil {
			return err
		}
		printAnnotations(annos)
	case c.Start >= 0 && c.End >= c.Start:
		annos, err := st.AnnotationsInRange(ctx, c.ID, c.Start, c.End)
		if err != nil {
			return err
		}
		printAnnotations(annos)
	default:
		counts, err := st.TagCounts(ctx, c.ID)
		if err != nil {
			return err
		}
		for _, tc := range counts {
			fmt.Printf("%s: %d\n", tc.TagPath, tc.Count)
		}
	}
	return nil
}

func printAnnotations(annos []store.AnnotationRow) {
	for _, anno := range annos {
		fmt.Printf("%s  %s", anno.ID, anno.TagPath)
		for _, r := range anno.Ranges {
			fmt.Printf("  [%d,%d)", r.Start, r.End)
		}
		fmt.Println()
		for name, values := range anno.Properties {
			fmt.Printf("  %s: %s\n", name, strings.Join(values, ", "))
		}
	}
}

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Port           int      `default:"8080" help:"Listen port"`
	DataDir        string   `name:"data-dir" default:"data" help:"Data directory for uploads and the collection database" type:"path"`
	CacheDir       string   `name:"cache-dir" help:"Cache conversion results in this directory" type:"path"`
	RateLimit      int      `name:"rate-limit" help:"Requests per minute per client (0 disables)"`
	RateBurst      int      `name:"rate-burst" help:"Rate limit burst size"`
	APIKey         string   `name:"api-key" env:"CATMA_API_KEY" help:"Require this API key on requests"`
	TLSCert        string   `name:"tls-cert" help:"TLS certificate file" type:"path"`
	TLSKey         string   `name:"tls-key" help:"TLS private key file" type:"path"`
	AllowedOrigins []string `name:"allowed-origins" help:"CORS allowed origins (default: allow all)"`
}

func (c *ServeCmd) Run() error {
	cfg := api.Config{
		Port:              c.Port,
		DataDir:           c.DataDir,
		CacheDir:          c.CacheDir,
		RateLimitRequests: c.RateLimit,
		RateLimitBurst:    c.RateBurst,
		AllowedOrigins:    c.AllowedOrigins,
	}
	if c.APIKey != "" {
		cfg.Auth = api.AuthConfig{Enabled: true, APIKey: c.APIKey}
	}
	if c.TLSCert != "" || c.TLSKey != "" {
		cfg.TLS = api.TLSConfig{Enabled: true, CertFile: c.TLSCert, KeyFile: c.TLSKey}
	}

	s, err := api.New(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Start()
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("catma version %s\n", version)
	info := sqlite.GetInfo()
	fmt.Printf("  SQLite driver: %s (%s)\n", info.Package, info.DriverType)
	return nil
}

func configureLogging() {
	level := logging.LevelInfo
	switch CLI.LogLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	format := logging.FormatJSON
	if CLI.LogFormat == "text" {
		format = logging.FormatText
	}
	logging.InitLogger(level, format)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("catma"),
		kong.Description("CATMA annotation converter for CoNLL-2012 and HotCorefDe exports"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	configureLogging()
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
