package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/travelo/travelo-cli/internal/comments"
)

// CommentsCommand returns the comments command group
func CommentsCommand() *cli.Command {
	articleFlag := &cli.Int64Flag{
		Name:     "article",
		Aliases:  []string{"a"},
		Usage:    "Article `ID` the comments belong to",
		Required: true,
	}

	return &cli.Command{
		Name:  "comments",
		Usage: "Read and write article comments",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List comments, newest first",
				Flags: []cli.Flag{
					articleFlag,
					&cli.IntFlag{Name: "pages", Usage: "Number of pages to fetch", Value: 1},
					&cli.BoolFlag{Name: "all", Usage: "Fetch every page"},
				},
				Action: runCommentsList,
			},
			{
				Name:  "post",
				Usage: "Post a new comment",
				Flags: []cli.Flag{
					articleFlag,
					&cli.StringFlag{Name: "content", Aliases: []string{"m"}, Required: true},
				},
				Action: runCommentsPost,
			},
			{
				Name:  "edit",
				Usage: "Edit one of your comments",
				Flags: []cli.Flag{
					articleFlag,
					&cli.Int64Flag{Name: "id", Required: true},
					&cli.StringFlag{Name: "content", Aliases: []string{"m"}, Required: true},
				},
				Action: runCommentsEdit,
			},
			{
				Name:  "delete",
				Usage: "Delete one of your comments",
				Flags: []cli.Flag{
					articleFlag,
					&cli.Int64Flag{Name: "id", Required: true},
				},
				Action: runCommentsDelete,
			},
		},
	}
}

// newThread builds the thread controller for the flagged article
func newThread(c *cli.Context, app *appContext) *comments.Thread {
	return comments.NewThread(
		c.Int64("article"),
		app.gateway,
		app.session,
		app.notifier,
		comments.WithPageSize(app.cfg.Comments.PageSize),
	)
}

func runCommentsList(c *cli.Context) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}
	thread := newThread(c, app)

	pages := c.Int("pages")
	for i := 0; c.Bool("all") || i < pages; i++ {
		if thread.Exhausted() {
			break
		}
		if err := thread.LoadNextPage(c.Context); err != nil {
			return cli.Exit("", 1)
		}
	}

	items := thread.Comments()
	for _, comment := range items {
		fmt.Printf("#%d %s (%s)\n  %s\n", comment.ID, comment.Author.Username, comment.CreatedAt, comment.Content)
	}
	fmt.Printf("%d of %d comments\n", len(items), thread.Total())
	return nil
}

func runCommentsPost(c *cli.Context) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}
	thread := newThread(c, app)

	created, err := thread.Post(c.Context, c.String("content"))
	if err != nil {
		return cli.Exit("", 1)
	}
	fmt.Printf("Posted comment #%d\n", created.ID)
	return nil
}

func runCommentsEdit(c *cli.Context) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}
	thread := newThread(c, app)

	// Edits are gated on ownership, which needs the comment in the local
	// thread: page in until the target comment is present.
	id := c.Int64("id")
	if err := loadUntilPresent(c, thread, id); err != nil {
		return cli.Exit("", 1)
	}
	if _, err := thread.Edit(c.Context, id, c.String("content")); err != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func runCommentsDelete(c *cli.Context) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}
	thread := newThread(c, app)

	id := c.Int64("id")
	if err := loadUntilPresent(c, thread, id); err != nil {
		return cli.Exit("", 1)
	}
	if err := thread.Delete(c.Context, id); err != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func loadUntilPresent(c *cli.Context, thread *comments.Thread, commentID int64) error {
	for {
		for _, comment := range thread.Comments() {
			if comment.ID == commentID {
				return nil
			}
		}
		if thread.Exhausted() {
			return nil // let the controller report "not found"
		}
		if err := thread.LoadNextPage(c.Context); err != nil {
			return err
		}
	}
}
