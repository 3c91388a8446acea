// package formatter exports cached playlists to CSV, Markdown, plain text and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/shared"
)

// Format is an export format.
type Format string

const (
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "txt"
	JSON     Format = "json"
)

// ParseFormat accepts csv, markdown (md), txt (text) and json, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "txt", "text":
		return Text, nil
	case "json", "":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (use csv, markdown, txt or json)", shared.ErrInvalidArgument, s)
	}
}

// ExportToCSV converts a [models.PlaylistExport] to CSV format with columns: Position, Video ID, Title, URL, Item ID
func ExportToCSV(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Video ID", "Title", "URL", "Item ID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, v := range export.Videos {
		record := []string{
			strconv.FormatInt(v.Position, 10),
			v.VideoID,
			v.Title,
			models.WatchURL(v.VideoID),
			v.ID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a [models.PlaylistExport] to Markdown format with optional cover image
func ExportToMarkdown(export *models.PlaylistExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Title)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if desc := models.StringValue(export.Playlist.Description); desc != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", desc)
	}

	fmt.Fprintf(&buf, "**Videos**: %d\n", len(export.Videos))
	fmt.Fprintf(&buf, "**Playlist**: https://www.youtube.com/playlist?list=%s\n\n", export.Playlist.ID)

	buf.WriteString("## Videos\n\n")
	for i, v := range export.Videos {
		fmt.Fprintf(&buf, "%d. [%s](%s)\n", i+1, v.Title, models.WatchURL(v.VideoID))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a [models.PlaylistExport] to plain text format
func ExportToText(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Title)
	if desc := models.StringValue(export.Playlist.Description); desc != "" {
		fmt.Fprintf(&buf, "Description: %s\n", desc)
	}
	fmt.Fprintf(&buf, "Videos: %d\n\n", len(export.Videos))

	for i, v := range export.Videos {
		fmt.Fprintf(&buf, "%d. %s (%s)\n", i+1, v.Title, models.WatchURL(v.VideoID))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a [models.PlaylistExport] to indented JSON.
func ExportToJSON(export *models.PlaylistExport) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Render converts export to format. Markdown is rendered without a cover image.
func Render(export *models.PlaylistExport, format Format) ([]byte, error) {
	switch format {
	case CSV:
		return ExportToCSV(export)
	case Markdown:
		return ExportToMarkdown(export, "")
	case Text:
		return ExportToText(export)
	case JSON:
		return ExportToJSON(export)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// MarkdownExportResult contains information about files created by [WriteMarkdownExport]
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
	Warnings   []error // cover download or save failures
}

// WriteMarkdownExport exports a playlist to Markdown format in a dedicated directory.
//
// Directory name defaults to the playlist ID. When the playlist has a thumbnail it is downloaded as
// cover.jpg; a failed download is recorded in Warnings and the README is written without it.
func WriteMarkdownExport(client *http.Client, export *models.PlaylistExport, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.Playlist.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if imageURL := models.StringValue(export.Playlist.ThumbnailURL); imageURL != "" {
		imageData, err := DownloadImage(client, imageURL)
		if err != nil {
			result.Warnings = append(result.Warnings, err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				result.Warnings = append(result.Warnings, fmt.Errorf("failed to save cover image: %w", err))
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteExport writes export to path in format and returns the files created.
//
// Markdown is written as a directory (see [WriteMarkdownExport]); other formats default to
// {playlist.ID}.{ext} when path is empty.
func WriteExport(client *http.Client, export *models.PlaylistExport, format Format, path string) ([]string, error) {
	if format == Markdown {
		res, err := WriteMarkdownExport(client, export, path)
		if err != nil {
			return nil, err
		}
		return res.Files, nil
	}

	data, err := Render(export, format)
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = fmt.Sprintf("%s.%s", export.Playlist.ID, format)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return []string{path}, nil
}

// Write renders export to w.
func Write(w io.Writer, export *models.PlaylistExport, format Format) error {
	data, err := Render(export, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
