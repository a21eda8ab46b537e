package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yuanying/epub3/internal/cover"
	"github.com/yuanying/epub3/internal/epub"
	"github.com/yuanying/epub3/internal/validate"
)

var errInvalid = errors.New("validation failed")

// readBook parses CLI options and reads the book named by args[0].
func readBook(cmd *cobra.Command, args []string) (*epub.Container, cliOptions, error) {
	opts, err := readCLIOptions(cmd, args)
	if err != nil {
		return nil, opts, err
	}
	opts.Logger.Debug("reading", zap.String("path", args[0]))
	c, err := epub.NewCodec(opts.Codec).ReadFile(args[0])
	if err != nil {
		return nil, opts, fmt.Errorf("read %s: %w", args[0], err)
	}
	return c, opts, nil
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <book.epub>",
		Short: "Print metadata, manifest and spine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := readBook(cmd, args)
			if err != nil {
				return err
			}
			printInspect(cmd.OutOrStdout(), c)
			return nil
		},
	}
}

func printInspect(w io.Writer, c *epub.Container) {
	md := c.Metadata()
	fmt.Fprintf(w, "Identifier: %s\n", md.Identifier)
	fmt.Fprintf(w, "Title:      %s\n", md.Title)
	fmt.Fprintf(w, "Language:   %s\n", md.Language)
	if len(md.Creators) > 0 {
		fmt.Fprintf(w, "Creators:   %s\n", strings.Join(md.Creators, ", "))
	}
	if md.Publisher != "" {
		fmt.Fprintf(w, "Publisher:  %s\n", md.Publisher)
	}
	if !md.Modified.IsZero() {
		fmt.Fprintf(w, "Modified:   %s\n", md.Modified.Format(time.RFC3339))
	}

	items := c.Manifest().Items()
	fmt.Fprintf(w, "\nManifest (%d items):\n", len(items))
	for _, it := range items {
		line := fmt.Sprintf("  %-16s %-32s %s", it.ID, it.Href, it.MediaType)
		if len(it.Properties) > 0 {
			line += " [" + strings.Join(it.Properties, " ") + "]"
		}
		fmt.Fprintln(w, line)
	}

	spine := c.Spine()
	fmt.Fprintf(w, "\nSpine (%s, %d items):\n", spine.Direction(), spine.Len())
	for i, it := range spine.Items() {
		suffix := ""
		if !it.Linear {
			suffix = " (non-linear)"
		}
		fmt.Fprintf(w, "  %d. %s%s\n", i+1, it.IDRef, suffix)
	}

	if cols := c.Package().Collections(); len(cols) > 0 {
		fmt.Fprintf(w, "\nCollections:\n")
		for _, col := range cols {
			fmt.Fprintf(w, "  %s: %s\n", col.Role, strings.Join(col.Links, ", "))
		}
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <book.epub>",
		Short: "Check a book for structural problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := readBook(cmd, args)
			if err != nil {
				return err
			}
			r := validate.Validate(c)
			printReport(cmd.OutOrStdout(), r)
			if !r.Valid {
				return errInvalid
			}
			return nil
		},
	}
}

func printReport(w io.Writer, r validate.Report) {
	for _, e := range r.Errors {
		fmt.Fprintf(w, "ERROR   [%s] %s\n", e.Location, e.Message)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "WARNING [%s] %s\n", warn.Location, warn.Message)
	}
	if r.Valid {
		fmt.Fprintf(w, "valid (%d warnings)\n", len(r.Warnings))
	} else {
		fmt.Fprintf(w, "invalid (%d errors, %d warnings)\n", len(r.Errors), len(r.Warnings))
	}
}

func newTOCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toc <book.epub>",
		Short: "Print the navigation document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := readBook(cmd, args)
			if err != nil {
				return err
			}
			nav, ok := c.Navigation()
			if !ok {
				return fmt.Errorf("%s: no navigation document", args[0])
			}
			w := cmd.OutOrStdout()
			for _, typ := range epub.NavTypes {
				points := nav.Tree.Points(typ)
				if len(points) == 0 {
					continue
				}
				fmt.Fprintf(w, "%s:\n", typ)
				printPoints(w, points, 1)
			}
			return nil
		},
	}
}

func printPoints(w io.Writer, points []epub.NavPoint, level int) {
	for _, p := range points {
		fmt.Fprintf(w, "%s%s -> %s\n", strings.Repeat("  ", level), p.Text, p.Href)
		printPoints(w, p.Children, level+1)
	}
}

func newNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new <book.epub>",
		Short: "Create a minimal EPUB 3 book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			title, _ := cmd.Flags().GetString("title")
			lang, _ := cmd.Flags().GetString("language")
			id, _ := cmd.Flags().GetString("identifier")
			authors, _ := cmd.Flags().GetStringSlice("author")
			if id == "" {
				id = epub.NewIdentifier()
			}

			md, err := epub.NewMetadata(id, title, lang)
			if err != nil {
				return err
			}
			md.Creators = authors
			md.Modified = time.Now().UTC().Truncate(time.Second)

			c, err := newBook(md)
			if err != nil {
				return err
			}
			if err := epub.NewCodec(opts.Codec).WriteFile(args[0], c); err != nil {
				return fmt.Errorf("write %s: %w", args[0], err)
			}
			opts.Logger.Info("created", zap.String("path", args[0]), zap.String("identifier", id))
			return nil
		},
	}
	cmd.Flags().String("title", "", "Book title (required)")
	cmd.Flags().String("language", "en", "BCP 47 language tag")
	cmd.Flags().String("identifier", "", "Unique identifier (default: a new urn:uuid)")
	cmd.Flags().StringSlice("author", nil, "Author name; may be repeated")
	return cmd
}

// newBook builds a container with one chapter and a navigation document.
func newBook(md epub.Metadata) (*epub.Container, error) {
	c, err := epub.Create(md)
	if err != nil {
		return nil, err
	}

	const chapterPath = "text/chapter-1.xhtml"
	page, err := chapterXHTML(md.Title, md.Language)
	if err != nil {
		return nil, err
	}
	if err := c.AddManifestItem(epub.ManifestItem{ID: "chapter-1", Href: chapterPath, MediaType: epub.MediaTypeXHTML}); err != nil {
		return nil, err
	}
	if err := c.AddResource(epub.Resource{Path: chapterPath, Data: page}); err != nil {
		return nil, err
	}
	if err := c.AddSpineItem(epub.NewSpineItem("chapter-1")); err != nil {
		return nil, err
	}
	if err := c.AddManifestItem(epub.ManifestItem{ID: "nav", Href: "nav.xhtml", MediaType: epub.MediaTypeXHTML}); err != nil {
		return nil, err
	}

	nav := epub.NewNavigationDocument("nav", "nav.xhtml")
	nav.Tree.TOC = []epub.NavPoint{{Text: md.Title, Href: chapterPath}}
	nav.Tree.Landmarks = []epub.NavPoint{{Text: "Start of Content", Href: chapterPath, Type: "bodymatter"}}
	if err := c.SetNavigation(nav); err != nil {
		return nil, err
	}
	return c, nil
}

func chapterXHTML(title, lang string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.CreateDirective("DOCTYPE html")
	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", epub.NamespaceXHTML)
	html.CreateAttr("xml:lang", lang)
	html.CreateElement("head").CreateElement("title").SetText(title)
	body := html.CreateElement("body")
	body.CreateElement("h1").SetText(title)
	body.CreateElement("p")
	doc.Indent(2)
	doc.WriteSettings.CanonicalEndTags = true
	return doc.WriteToBytes()
}

func newCoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cover <book.epub>",
		Short: "Detect the cover image and write a thumbnail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, opts, err := readBook(cmd, args)
			if err != nil {
				return err
			}
			info := cover.Detect(c)
			if info == nil {
				return fmt.Errorf("%s: no cover image found", args[0])
			}
			opts.Logger.Debug("cover detected",
				zap.String("id", info.ManifestID),
				zap.String("href", info.Href),
				zap.String("method", info.DetectionMethod))

			r, ok := c.Resource(info.Href)
			if !ok {
				return fmt.Errorf("%s: cover %s missing from archive", args[0], info.Href)
			}
			width, _ := cmd.Flags().GetInt("max-width")
			if width <= 0 {
				return fmt.Errorf("invalid --max-width %d: must be positive", width)
			}
			thumb, err := cover.Render(r.Data, cover.ThumbnailOptions{MaxWidth: width})
			if err != nil {
				return fmt.Errorf("render %s: %w", info.Href, err)
			}

			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				out = defaultCoverPath(args[0], thumb.Format)
			}
			if err := os.WriteFile(out, thumb.Data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %dx%d) -> %s\n", info.Href, info.DetectionMethod, thumb.Width, thumb.Height, out)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output image path (default: <book>-cover.<ext>)")
	cmd.Flags().Int("max-width", 600, "Maximum thumbnail width in pixels")
	return cmd
}

func defaultCoverPath(input, format string) string {
	ext := "jpg"
	if format == "png" {
		ext = "png"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + "-cover." + ext
}
