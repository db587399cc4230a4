package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/patric-chuzhbe/blogshelf/internal/client/apiclient"
	"github.com/patric-chuzhbe/blogshelf/internal/client/sessionstore"
	"github.com/patric-chuzhbe/blogshelf/internal/client/syncer"
	"github.com/patric-chuzhbe/blogshelf/internal/models"
)

// session is what every subcommand works with once PersistentPreRunE ran.
type session struct {
	cfg   config
	ui    ui
	store *sessionstore.Store
	sync  *syncer.Synchronizer
}

// run executes one blogctl invocation and releases the session database.
func run(ctx context.Context, out io.Writer, args []string) error {
	root, s := newRootCmd(out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, s.close())
}

func newRootCmd(out io.Writer) (*cobra.Command, *session) {
	s := &session{ui: ui{out: out}}
	var (
		serverURL string
		sessionDB string
	)

	root := &cobra.Command{
		Use:           "blogctl",
		Short:         "Terminal client of the blog server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if serverURL != "" {
				cfg.ServerURL = serverURL
			}
			if sessionDB != "" {
				cfg.SessionDB = sessionDB
			}
			s.cfg = cfg

			s.store, err = sessionstore.New(cmd.Context(), cfg.SessionDB)
			if err != nil {
				return err
			}
			s.sync, err = syncer.New(
				cmd.Context(),
				apiclient.New(cfg.ServerURL, apiclient.WithTimeout(cfg.Timeout)),
				s.store,
				syncer.WithNotifier(s.ui.notify),
			)
			return err
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&serverURL, "server", "", "blog server URL (env BLOGCTL_SERVER_URL)")
	root.PersistentFlags().StringVar(&sessionDB, "session-db", "", "session database file (env BLOGCTL_SESSION_DB)")

	root.AddCommand(
		newSignupCmd(s),
		newLoginCmd(s),
		newLogoutCmd(s),
		newWhoamiCmd(s),
		newListCmd(s),
		newMineCmd(s),
		newShowCmd(s),
		newCreateCmd(s),
		newUpdateCmd(s),
		newDeleteCmd(s),
	)

	return root, s
}

func (s *session) close() error {
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

func newSignupCmd(s *session) *cobra.Command {
	var request models.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.sync.Signup(cmd.Context(), request)
		},
	}
	cmd.Flags().StringVar(&request.Name, "name", "", "display name")
	cmd.Flags().StringVar(&request.Email, "email", "", "email")
	cmd.Flags().StringVar(&request.Password, "password", "", "password")
	return cmd
}

func newLoginCmd(s *session) *cobra.Command {
	var request models.LoginRequest
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.sync.Login(cmd.Context(), request)
		},
	}
	cmd.Flags().StringVar(&request.Email, "email", "", "email")
	cmd.Flags().StringVar(&request.Password, "password", "", "password")
	return cmd
}

func newLogoutCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.sync.Logout(cmd.Context())
		},
	}
}

func newWhoamiCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := s.sync.State().Identity
			if identity == nil {
				return syncer.ErrNotLoggedIn
			}
			s.ui.info(fmt.Sprintf("%s (%s)", identity.Email, identity.UserID))
			return nil
		},
	}
}

func newListCmd(s *session) *cobra.Command {
	var filter models.BlogFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blogs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.sync.FetchAll(cmd.Context(), filter); err != nil {
				return fetchError(s, err)
			}
			return s.ui.blogs(s.sync.State().Blogs)
		},
	}
	cmd.Flags().StringVar(&filter.Author, "author", "", "author substring, case-insensitive")
	cmd.Flags().StringVar(&filter.Category, "category", "", "category substring, case-insensitive")
	return cmd
}

func newMineCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List the blogs owned by the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.sync.FetchAll(cmd.Context(), models.BlogFilter{}); err != nil {
				return fetchError(s, err)
			}
			return s.ui.blogs(s.sync.MyPosts())
		},
	}
}

func newShowCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one blog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.sync.FetchAll(cmd.Context(), models.BlogFilter{}); err != nil {
				return fetchError(s, err)
			}
			s.sync.Select(args[0])
			blog, err := s.sync.Selected()
			if err != nil {
				return fmt.Errorf("blog %s: %w", args[0], err)
			}
			return s.ui.blog(blog)
		},
	}
}

type blogFlags struct {
	title       string
	category    string
	content     string
	contentFile string
	imagePath   string
}

func (f *blogFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "title")
	cmd.Flags().StringVar(&f.category, "category", "", "category")
	cmd.Flags().StringVar(&f.content, "content", "", "HTML content")
	cmd.Flags().StringVar(&f.contentFile, "content-file", "", "read HTML content from a file")
	cmd.Flags().StringVar(&f.imagePath, "image", "", "thumbnail image file")
	cmd.MarkFlagsMutuallyExclusive("content", "content-file")
}

func (f *blogFlags) resolveContent() error {
	if f.contentFile == "" {
		return nil
	}
	data, err := os.ReadFile(f.contentFile)
	if err != nil {
		return err
	}
	f.content = string(data)
	return nil
}

func (f *blogFlags) image() (*apiclient.ImageFile, error) {
	if f.imagePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(f.imagePath)
	if err != nil {
		return nil, err
	}
	return &apiclient.ImageFile{Name: filepath.Base(f.imagePath), Data: data}, nil
}

func newCreateCmd(s *session) *cobra.Command {
	flags := &blogFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a blog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.resolveContent(); err != nil {
				return err
			}
			image, err := flags.image()
			if err != nil {
				return err
			}

			draft := models.BlogDraft{Title: flags.title, Category: flags.category, Content: flags.content}
			blog, err := s.sync.Create(cmd.Context(), draft, image)
			if err != nil {
				return err
			}
			return s.ui.blog(*blog)
		},
	}
	flags.register(cmd)
	return cmd
}

func newUpdateCmd(s *session) *cobra.Command {
	flags := &blogFlags{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the fields given as flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.resolveContent(); err != nil {
				return err
			}
			image, err := flags.image()
			if err != nil {
				return err
			}

			var patch models.BlogPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &flags.title
			}
			if cmd.Flags().Changed("category") {
				patch.Category = &flags.category
			}
			if cmd.Flags().Changed("content") || cmd.Flags().Changed("content-file") {
				patch.Content = &flags.content
			}

			blog, err := s.sync.Update(cmd.Context(), args[0], patch, image)
			if err != nil {
				return err
			}
			return s.ui.blog(*blog)
		},
	}
	flags.register(cmd)
	return cmd
}

func newDeleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a blog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.sync.Delete(cmd.Context(), args[0])
		},
	}
}

// fetchError reports failed listings, which the synchronizer does not notify about.
func fetchError(s *session, err error) error {
	s.ui.notify(syncer.Notification{Kind: syncer.NotificationError, Message: s.sync.State().LastError})
	return &syncer.NotifiedError{Err: err}
}
