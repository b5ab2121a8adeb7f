// Command tinyvecctl is a CLI for inserting into and querying a tinyvec
// database file from the shell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/liliang-cn/tinyvec"
)

var (
	dbPath     string
	dimensions int
)

var rootCmd = &cobra.Command{
	Use:   "tinyvecctl",
	Short: "CLI tool for a tinyvec vector database file",
	Long:  `A command-line interface for inserting, searching, and inspecting a tinyvec database file.`,
}

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert one vector with a JSON metadata payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		metadataStr, _ := cmd.Flags().GetString("metadata")
		tagDemo, _ := cmd.Flags().GetBool("tag-demo")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		payload := []byte(metadataStr)
		if len(payload) == 0 {
			payload = []byte("{}")
		}
		if tagDemo {
			var m map[string]any
			if err := json.Unmarshal(payload, &m); err != nil {
				m = map[string]any{}
			}
			m["demo_id"] = uuid.NewString()
			payload, _ = json.Marshal(m)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.Insert(cmd.Context(), []tinyvec.Record{{Vector: vector, Payload: payload}})
		if err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		fmt.Printf("inserted %d record(s)\n", n)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for the K nearest neighbors of a query vector",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		k, _ := cmd.Flags().GetInt("top-k")
		filterStr, _ := cmd.Flags().GetString("filter")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var results []tinyvec.SearchResult
		if filterStr != "" {
			results, err = db.SearchWithFilter(cmd.Context(), vector, k, []byte(filterStr))
		} else {
			results, err = db.Search(cmd.Context(), vector, k)
		}
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		for _, r := range results {
			fmt.Printf("id=%d similarity=%.4f payload=%s\n", r.ID, r.Similarity, r.Payload)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print {N, D} for the database file",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		fmt.Printf("N=%d D=%d vector_file_bytes=%d metadata_file_bytes=%d\n",
			stats.N, stats.D, stats.VectorFileBytes, stats.MetadataFileBytes)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete vectors by ID",
	RunE: func(cmd *cobra.Command, args []string) error {
		idsStr, _ := cmd.Flags().GetString("ids")
		if idsStr == "" {
			return fmt.Errorf("--ids is required")
		}
		var ids []int64
		for _, part := range strings.Split(idsStr, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", part, err)
			}
			ids = append(ids, id)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.DeleteByIDs(cmd.Context(), ids)
		if err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		fmt.Printf("removed %d record(s)\n", n)
		return nil
	},
}

var paginateCmd = &cobra.Command{
	Use:   "paginate",
	Short: "List records in file order",
	RunE: func(cmd *cobra.Command, args []string) error {
		skip, _ := cmd.Flags().GetInt("skip")
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		page, err := db.Paginate(cmd.Context(), skip, limit)
		if err != nil {
			return fmt.Errorf("paginate: %w", err)
		}
		for _, item := range page {
			fmt.Printf("id=%d payload=%s\n", item.ID, item.Payload)
		}
		return nil
	},
}

func parseVector(s string) ([]float32, error) {
	if s == "" {
		return nil, fmt.Errorf("--vector is required")
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		vec[i] = float32(v)
	}
	return vec, nil
}

func openDB() (*tinyvec.DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path not specified")
	}
	var opts []tinyvec.Option
	if dimensions > 0 {
		opts = append(opts, tinyvec.WithDimensions(dimensions))
	}
	return tinyvec.Open(context.Background(), dbPath, opts...)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "vectors.db", "Database file path")
	rootCmd.PersistentFlags().IntVarP(&dimensions, "dimensions", "n", 0, "Vector dimensions (0 = infer)")

	insertCmd.Flags().String("vector", "", "Vector values (comma-separated)")
	insertCmd.Flags().String("metadata", "", "Metadata as JSON")
	insertCmd.Flags().Bool("tag-demo", false, "Stamp the payload with a random demo_id")

	searchCmd.Flags().String("vector", "", "Query vector (comma-separated)")
	searchCmd.Flags().Int("top-k", 10, "Number of results")
	searchCmd.Flags().String("filter", "", "MongoDB-shaped predicate as JSON")

	deleteCmd.Flags().String("ids", "", "Comma-separated IDs to delete")

	paginateCmd.Flags().Int("skip", 0, "Records to skip")
	paginateCmd.Flags().Int("limit", 100, "Max records to return")

	rootCmd.AddCommand(insertCmd, searchCmd, statsCmd, deleteCmd, paginateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
