package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/raphaelgruber/wikidesk/internal/view"
	"github.com/raphaelgruber/wikidesk/internal/wiki"
	"github.com/spf13/cobra"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Browse and edit wiki pages",
	Example: `  wikidesk pages list --page 2
  wikidesk pages search onboarding
  wikidesk pages create --title "Runbook" --content-file runbook.md --tag ops
  wikidesk pages attach 5 diagram.png`,
}

var (
	pagesPage int
	pagesSize int

	pageTitle       string
	pageContentFile string
	pageTags        []string
	pageFile        string
	pageSets        []string

	pageForce bool
)

var pageHeaders = []string{"ID", "TITLE", "AUTHOR", "TAGS", "UPDATED"}

func pageRow(p wiki.Page) []string {
	return []string{
		strconv.Itoa(p.ID),
		truncate(p.Title, 48),
		wiki.DisplayName(p.Author, "(deleted user)"),
		truncate(strings.Join(p.Tags, ", "), 30),
		formatTime(p.UpdatedAt),
	}
}

var pagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wiki pages, one server page at a time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		skip, limit := view.Offset(pagesPage-1, pagesSize)
		loader := view.NewLoader(func(ctx context.Context) ([]wiki.Page, error) {
			return wikiAPI.ListPages(ctx, wiki.Paging{Skip: skip, Limit: limit})
		})
		if err := loader.Load(cmd.Context()); err != nil {
			return fail(err, "Could not load pages.")
		}

		pages := loader.Data()
		if err := printList(pages, "No pages found.", pageHeaders, pageRow); err != nil {
			return err
		}
		if !jsonOut && limit > 0 && len(pages) == limit {
			fmt.Println(defaultTheme.hintStyle().Render(
				fmt.Sprintf("Page %d. Use --page %d for more.", pagesPage, pagesPage+1)))
		}
		return nil
	},
}

var pagesSearchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search pages by keyword",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyword := strings.Join(args, " ")
		pages, err := wikiAPI.SearchPages(cmd.Context(), keyword)
		if err != nil {
			return fail(err, "Search failed.")
		}
		return printList(pages, fmt.Sprintf("No pages match %q.", keyword), pageHeaders, pageRow)
	},
}

var pagesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a page rendered as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		page, err := wikiAPI.Pages.Get(cmd.Context(), id)
		if err != nil {
			return fail(err, fmt.Sprintf("Could not load page %d.", id))
		}
		if jsonOut {
			return printJSON(page)
		}
		describePage(page)
		return nil
	},
}

func describePage(p *wiki.Page) {
	fmt.Println(defaultTheme.accentStyle().Render(fmt.Sprintf("#%d %s", p.ID, p.Title)))
	printFields(
		"Author", wiki.DisplayName(p.Author, "(deleted user)"),
		"Tags", strings.Join(p.Tags, ", "),
		"Updated", formatTime(p.UpdatedAt),
	)
	fmt.Println()
	fmt.Println(renderMarkdown(p.Content, 100))

	if len(p.Attachments) > 0 {
		fmt.Println()
		fmt.Println(defaultTheme.accentStyle().Render("Attachments"))
		for _, a := range p.Attachments {
			fmt.Printf("  %s  %s\n", a.Filename, defaultTheme.hintStyle().Render(a.URL))
		}
	}
}

// pageFields merges the page convenience flags into the generic payload.
func pageFields() (wiki.Fields, error) {
	fields := wiki.Fields{}
	if pageFile != "" || len(pageSets) > 0 {
		f, err := parseFields(pageFile, pageSets)
		if err != nil {
			return nil, err
		}
		fields = f
	}
	if pageTitle != "" {
		fields["title"] = pageTitle
	}
	if pageContentFile != "" {
		data, err := os.ReadFile(pageContentFile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", pageContentFile, err)
		}
		fields["content"] = string(data)
	}
	if len(pageTags) > 0 {
		fields["tags"] = pageTags
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("nothing to send: use --title, --content-file, --tag, --set or --file")
	}
	return fields, nil
}

var pagesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a page",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := pageFields()
		if err != nil {
			return err
		}
		if _, ok := fields["title"]; !ok {
			return fmt.Errorf("a page needs a --title")
		}
		page, err := wikiAPI.Pages.Create(cmd.Context(), fields)
		if err != nil {
			return fail(err, "Could not create page.")
		}
		if jsonOut {
			return printJSON(page)
		}
		fmt.Println(defaultTheme.successStyle().Render(fmt.Sprintf("✓ Created page #%d %s", page.ID, page.Title)))
		return nil
	},
}

var pagesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		fields, err := pageFields()
		if err != nil {
			return err
		}
		page, err := wikiAPI.Pages.Update(cmd.Context(), id, fields)
		if err != nil {
			return fail(err, fmt.Sprintf("Could not update page %d.", id))
		}
		if jsonOut {
			return printJSON(page)
		}
		fmt.Println(defaultTheme.successStyle().Render(fmt.Sprintf("✓ Updated page #%d %s", page.ID, page.Title)))
		return nil
	},
}

var pagesAttachCmd = &cobra.Command{
	Use:   "attach <id> <file>",
	Short: "Upload a file to a page",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[1], err)
		}
		defer f.Close()

		att, err := wikiAPI.AttachFile(cmd.Context(), id, filepath.Base(args[1]), f)
		if err != nil {
			return fail(err, fmt.Sprintf("Could not attach %s.", filepath.Base(args[1])))
		}
		if jsonOut {
			return printJSON(att)
		}
		fmt.Println(defaultTheme.successStyle().Render(fmt.Sprintf("✓ Attached %s to page #%d", att.Filename, id)))
		return nil
	},
}

var pagesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if !pageForce {
			page, err := wikiAPI.Pages.Get(ctx, id)
			if err != nil {
				return fail(err, fmt.Sprintf("Could not load page %d.", id))
			}
			ok, err := confirm(fmt.Sprintf("Delete page #%d %q?", page.ID, page.Title))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if err := wikiAPI.Pages.Delete(ctx, id); err != nil {
			return fail(err, fmt.Sprintf("Could not delete page %d.", id))
		}
		fmt.Println(defaultTheme.successStyle().Render(fmt.Sprintf("✓ Deleted page #%d", id)))
		return nil
	},
}

func init() {
	pagesListCmd.Flags().IntVar(&pagesPage, "page", 1, "page number (1-based)")
	pagesListCmd.Flags().IntVarP(&pagesSize, "size", "n", 20, "pages per request")

	for _, c := range []*cobra.Command{pagesCreateCmd, pagesUpdateCmd} {
		c.Flags().StringVarP(&pageTitle, "title", "t", "", "page title")
		c.Flags().StringVarP(&pageContentFile, "content-file", "c", "", "Markdown file with the page content")
		c.Flags().StringArrayVar(&pageTags, "tag", nil, "tag (repeatable)")
		c.Flags().StringVar(&pageFile, "file", "", "YAML or JSON file with the fields")
		c.Flags().StringArrayVarP(&pageSets, "set", "s", nil, "field value as key=value (repeatable)")
	}

	pagesDeleteCmd.Flags().BoolVarP(&pageForce, "force", "f", false, "skip confirmation")

	pagesCmd.AddCommand(pagesListCmd, pagesSearchCmd, pagesShowCmd,
		pagesCreateCmd, pagesUpdateCmd, pagesAttachCmd, pagesDeleteCmd)
}
