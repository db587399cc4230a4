package main

import (
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/patric-chuzhbe/blogshelf/internal/client/syncer"
	"github.com/patric-chuzhbe/blogshelf/internal/models"
)

const timeLayout = "2006-01-02 15:04"

type ui struct {
	out io.Writer
}

func (u ui) notify(n syncer.Notification) {
	if n.Kind == syncer.NotificationError {
		pterm.Error.WithWriter(u.out).Println(n.Message)
		return
	}
	pterm.Success.WithWriter(u.out).Println(n.Message)
}

func (u ui) info(message string) {
	pterm.Info.WithWriter(u.out).Println(message)
}

func (u ui) blogs(blogs models.Blogs) error {
	if len(blogs) == 0 {
		u.info("No blogs found.")
		return nil
	}

	data := pterm.TableData{{"ID", "Title", "Category", "Author", "Image", "Updated"}}
	for _, blog := range blogs {
		data = append(data, []string{
			blog.ID,
			blog.Title,
			blog.Category,
			blog.Author,
			yesNo(blog.Image != ""),
			blog.UpdatedAt.Local().Format(timeLayout),
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithWriter(u.out).WithData(data).Render()
}

func (u ui) blog(blog models.Blog) error {
	data := pterm.TableData{
		{"ID", blog.ID},
		{"Title", blog.Title},
		{"Category", blog.Category},
		{"Author", blog.Author},
		{"Image", blog.Image},
		{"Created", blog.CreatedAt.Local().Format(timeLayout)},
		{"Updated", blog.UpdatedAt.Local().Format(timeLayout)},
	}
	if err := pterm.DefaultTable.WithWriter(u.out).WithData(data).Render(); err != nil {
		return err
	}

	pterm.Fprintln(u.out, strings.TrimSpace(blog.Content))
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
