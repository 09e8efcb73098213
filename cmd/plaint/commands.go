package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openintake/plaint/internal/api"
	"github.com/openintake/plaint/internal/extract"
	"github.com/openintake/plaint/internal/storage"
)

// --- submit ---

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a complaint for classification and storage",
	Long: `Submit a complaint for classification and storage.

Examples:
  plaint submit --company "Acme Bank" --text "I was charged twice"
  plaint submit --company "Acme Bank" --file ./complaint.pdf
  plaint submit --company "Acme Bank" --voice ./recording.mp3
  plaint submit --company "Acme Bank" --image ./letter.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		company, _ := cmd.Flags().GetString("company")
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		voice, _ := cmd.Flags().GetString("voice")
		image, _ := cmd.Flags().GetString("image")

		if company == "" {
			return fmt.Errorf("--company is required")
		}
		if text == "" && file == "" && voice == "" && image == "" {
			return fmt.Errorf("one of --text, --file, --voice, or --image is required")
		}

		if file != "" {
			content, err := readComplaintFile(file)
			if err != nil {
				return err
			}
			text = content
		}

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("company", company)
		if text != "" {
			mw.WriteField("text", text)
		}
		if voice != "" {
			if err := attachFile(mw, "voice", voice); err != nil {
				return err
			}
		}
		if image != "" {
			if err := attachFile(mw, "image", image); err != nil {
				return err
			}
		}
		if err := mw.Close(); err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.postMultipart(cmd.Context(), "/submit", &buf, mw.FormDataContentType())
		if err != nil {
			return err
		}

		var record storage.ComplaintRecord
		if err := decodeJSON(resp, &record); err != nil {
			return err
		}

		printSuccess("Stored complaint %d", record.ID)
		printStatus("Company", "%s", record.Company)
		printStatus("Summary", "%s", record.Complaint)
		if record.ProductCategory != nil {
			printStatus("Category", "%s", *record.ProductCategory)
		}
		if record.ProductSubcategory != nil {
			printStatus("Subcategory", "%s", *record.ProductSubcategory)
		}
		printStatus("Is complaint", "%t", record.IsComplaint)
		return nil
	},
}

// readComplaintFile loads complaint text from a local file. PDFs get their
// plain text extracted; everything else is read as-is.
func readComplaintFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := extract.PDFText(path)
		if err != nil {
			return "", fmt.Errorf("extracting PDF text: %w", err)
		}
		return text, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}

func attachFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s file: %w", field, err)
	}
	defer f.Close()

	fw, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, f)
	return err
}

func init() {
	submitCmd.Flags().String("company", "", "company the complaint is about")
	submitCmd.Flags().String("text", "", "complaint text")
	submitCmd.Flags().String("file", "", "text or PDF file with the complaint")
	submitCmd.Flags().String("voice", "", "audio recording of the complaint")
	submitCmd.Flags().String("image", "", "image of the complaint")
}

// --- classify ---

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Classify text without storing it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.postJSON(cmd.Context(), "/classify", map[string]string{
			"query": strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		var result any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored complaints",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/list-complaints")
		if err != nil {
			return err
		}

		var result struct {
			Complaints []storage.ComplaintRecord `json:"complaints"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Complaints) == 0 {
			fmt.Println("No complaints found.")
			return nil
		}

		for _, c := range result.Complaints {
			category := "-"
			if c.ProductCategory != nil {
				category = *c.ProductCategory
			}
			fmt.Printf("%s  %s  %s  %s\n",
				colorize(colorCyan, fmt.Sprintf("%4d", c.ID)),
				c.CreatedAt.Format("2006-01-02"),
				colorize(colorBold, category),
				truncate(c.Complaint, 80),
			)
		}
		return nil
	},
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search complaints by meaning",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.postJSON(cmd.Context(), "/similarity-search", map[string]any{
			"query": strings.Join(args, " "),
			"topK":  limit,
		})
		if err != nil {
			return err
		}

		var results []api.SearchResult
		if err := decodeJSON(resp, &results); err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("\n%s [score: %.3f]\n", colorize(colorBold, fmt.Sprintf("Result %d", i+1)), r.Score)
			if r.Metadata.Company != "" {
				fmt.Printf("  Company: %s\n", r.Metadata.Company)
			}
			if r.Metadata.ProductCategory != "" {
				fmt.Printf("  Category: %s\n", r.Metadata.ProductCategory)
			}
			fmt.Printf("  %s\n", truncate(r.PageContent, 500))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Backfill historical complaints from a CSV or JSON file",
	Long: `Backfill historical complaints from a CSV or JSON file.

CSV files must carry the consumer-complaint dataset headers
(Company, Consumer complaint narrative, Product, Sub-product,
Date received). JSON files hold an array of row objects.

Rows are stored immediately; embedding and indexing happen
asynchronously through the job queue.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		rows, err := readImportRows(args[0])
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("no importable rows in %s", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		queued := 0
		for start := 0; start < len(rows); start += batchSize {
			end := start + batchSize
			if end > len(rows) {
				end = len(rows)
			}

			resp, err := client.postJSON(cmd.Context(), "/import", map[string]any{
				"rows": rows[start:end],
			})
			if err != nil {
				return err
			}

			var result struct {
				Queued int `json:"queued"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			queued += result.Queued
			fmt.Fprintf(os.Stderr, "queued %d/%d rows\n", queued, len(rows))
		}

		printSuccess("Queued %d complaints for indexing", queued)
		return nil
	},
}

func init() {
	importCmd.Flags().Int("batch-size", 500, "rows per import request")
}

// readImportRows parses an import file into rows, skipping entries without
// a narrative.
func readImportRows(path string) ([]api.ImportRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var rows []api.ImportRow
		if err := json.NewDecoder(f).Decode(&rows); err != nil {
			return nil, fmt.Errorf("parsing JSON rows: %w", err)
		}
		return rows, nil
	}
	return readCSVRows(f)
}

// readCSVRows maps the consumer-complaint dataset's columns onto import rows.
func readCSVRows(r io.Reader) ([]api.ImportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []api.ImportRow
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}

		row := api.ImportRow{
			Company:            field(record, "company"),
			Complaint:          field(record, "consumer complaint narrative"),
			ProductCategory:    field(record, "product"),
			SubProductCategory: field(record, "sub-product"),
			DateCreated:        field(record, "date received"),
		}
		if row.Company == "" || row.Complaint == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
