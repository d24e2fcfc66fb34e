package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/wikidesk/internal/view"
	"github.com/raphaelgruber/wikidesk/internal/wiki"
	"github.com/spf13/cobra"
)

// resourceSpec describes how one backend collection is listed and shown.
type resourceSpec[T any] struct {
	name     string // plural, used as the command name
	singular string
	short    string
	example  string

	resource func() wiki.Resource[T]
	headers  []string
	row      func(T) []string
	// text returns the fields --filter matches against.
	text func(T) []string
	// describe prints a single record.
	describe func(ctx context.Context, item *T) error
	// sortKeys maps --sort values to sort keys.
	sortKeys map[string]func(T) string
}

// listFlags are the client-side list controls. Lists are fetched whole and
// filtered, sorted and paged locally.
type listFlags struct {
	filter string
	sort   string
	desc   bool
	page   int
	size   int
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.filter, "filter", "f", "", "only show rows containing this text")
	cmd.Flags().StringVar(&f.sort, "sort", "", "sort column")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&f.page, "page", 1, "page number (1-based)")
	cmd.Flags().IntVarP(&f.size, "size", "n", 25, "rows per page (0 for all)")
}

// apply filters, sorts and pages items. It returns the visible page and the
// number of rows that matched the filter.
func applyListFlags[T any](spec resourceSpec[T], f listFlags, items []T) ([]T, int, error) {
	if f.filter != "" && spec.text != nil {
		items = view.Filter(items, func(it T) bool {
			return view.ContainsFold(f.filter, spec.text(it)...)
		})
	}
	if f.sort != "" {
		key, ok := spec.sortKeys[f.sort]
		if !ok {
			return nil, 0, fmt.Errorf("cannot sort %s by %q (choose from %s)", spec.name, f.sort, sortChoices(spec.sortKeys))
		}
		items = view.SortBy(items, func(it T) string { return strings.ToLower(key(it)) }, f.desc)
	}
	return view.Slice(items, f.page-1, f.size), len(items), nil
}

func sortChoices[T any](keys map[string]func(T) string) string {
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	return strings.Join(names, ", ")
}

// newResourceCmd builds list/show/create/update/delete for a collection.
func newResourceCmd[T any](spec resourceSpec[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:     spec.name,
		Short:   spec.short,
		Example: spec.example,
	}

	var lf listFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List " + spec.name,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResourceList(cmd.Context(), spec, lf)
		},
	}
	lf.register(listCmd)

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one " + spec.singular,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			item, err := spec.resource().Get(cmd.Context(), id)
			if err != nil {
				return fail(err, fmt.Sprintf("Could not load %s %d.", spec.singular, id))
			}
			if jsonOut {
				return printJSON(item)
			}
			return spec.describe(cmd.Context(), item)
		},
	}

	var createFile string
	var createSets []string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a " + spec.singular,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(createFile, createSets)
			if err != nil {
				return err
			}
			item, err := spec.resource().Create(cmd.Context(), fields)
			if err != nil {
				return fail(err, fmt.Sprintf("Could not create %s.", spec.singular))
			}
			fmt.Println(defaultTheme.successStyle().Render("✓ Created " + spec.singular))
			if jsonOut {
				return printJSON(item)
			}
			return spec.describe(cmd.Context(), item)
		},
	}
	createCmd.Flags().StringVar(&createFile, "file", "", "YAML or JSON file with the fields")
	createCmd.Flags().StringArrayVarP(&createSets, "set", "s", nil, "field value as key=value (repeatable)")

	var updateFile string
	var updateSets []string
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a " + spec.singular,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			fields, err := parseFields(updateFile, updateSets)
			if err != nil {
				return err
			}
			item, err := spec.resource().Update(cmd.Context(), id, fields)
			if err != nil {
				return fail(err, fmt.Sprintf("Could not update %s %d.", spec.singular, id))
			}
			fmt.Println(defaultTheme.successStyle().Render("✓ Updated " + spec.singular))
			if jsonOut {
				return printJSON(item)
			}
			return spec.describe(cmd.Context(), item)
		},
	}
	updateCmd.Flags().StringVar(&updateFile, "file", "", "YAML or JSON file with the fields")
	updateCmd.Flags().StringArrayVarP(&updateSets, "set", "s", nil, "field value as key=value (repeatable)")

	var force bool
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + spec.singular,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runResourceDelete(cmd.Context(), spec, id, force)
		},
	}
	deleteCmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")

	cmd.AddCommand(listCmd, showCmd, createCmd, updateCmd, deleteCmd)
	return cmd
}

func runResourceList[T any](ctx context.Context, spec resourceSpec[T], lf listFlags) error {
	loader := view.NewLoader(func(ctx context.Context) ([]T, error) {
		return spec.resource().List(ctx, nil)
	})
	if err := loader.Load(ctx); err != nil {
		return fail(err, fmt.Sprintf("Could not load %s.", spec.name))
	}

	page, total, err := applyListFlags(spec, lf, loader.Data())
	if err != nil {
		return err
	}
	if err := printList(page, fmt.Sprintf("No %s found.", spec.name), spec.headers, spec.row); err != nil {
		return err
	}
	if !jsonOut && lf.size > 0 && total > lf.size {
		fmt.Println(defaultTheme.hintStyle().Render(
			fmt.Sprintf("Page %d of %d (%d %s). Use --page to see more.",
				lf.page, view.PageCount(total, lf.size), total, spec.name)))
	}
	return nil
}

// runResourceDelete confirms, deletes and re-fetches the list so the count
// shown reflects the server.
func runResourceDelete[T any](ctx context.Context, spec resourceSpec[T], id int, force bool) error {
	res := spec.resource()

	item, err := res.Get(ctx, id)
	if err != nil {
		return fail(err, fmt.Sprintf("Could not load %s %d.", spec.singular, id))
	}

	if !force {
		label := fmt.Sprintf("%s %d", spec.singular, id)
		if spec.row != nil {
			if cols := spec.row(*item); len(cols) > 1 {
				label = fmt.Sprintf("%s %d (%s)", spec.singular, id, cols[1])
			}
		}
		ok, err := confirm("Delete " + label + "?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	loader := view.NewLoader(func(ctx context.Context) ([]T, error) {
		return res.List(ctx, nil)
	})
	err = view.Mutate(ctx, loader, func(ctx context.Context) error {
		return res.Delete(ctx, id)
	})
	if err != nil {
		if loader.Status() == view.StatusFailed {
			fmt.Println(defaultTheme.successStyle().Render(fmt.Sprintf("✓ Deleted %s %d", spec.singular, id)))
			return fail(err, fmt.Sprintf("Could not reload %s.", spec.name))
		}
		return fail(err, fmt.Sprintf("Could not delete %s %d.", spec.singular, id))
	}

	fmt.Println(defaultTheme.successStyle().Render(fmt.Sprintf("✓ Deleted %s %d", spec.singular, id)))
	fmt.Println(defaultTheme.hintStyle().Render(fmt.Sprintf("%d %s remaining.", len(loader.Data()), spec.name)))
	return nil
}
