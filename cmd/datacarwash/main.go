package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/datacarwash/datacarwash/internal/config"
	"github.com/datacarwash/datacarwash/internal/pipeline"
	"github.com/datacarwash/datacarwash/internal/platform/archive"
	"github.com/datacarwash/datacarwash/internal/platform/keystore"
	"github.com/datacarwash/datacarwash/internal/platform/kobo"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "datacarwash",
		Short: "Survey data normalization and secure handoff pipeline",
	}

	rootCmd.AddCommand(washCmd())
	rootCmd.AddCommand(decryptCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(keyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func washCmd() *cobra.Command {
	var (
		input    string
		output   string
		encrypt  bool
		password string
	)

	cmd := &cobra.Command{
		Use:   "wash",
		Short: "Normalize, merge, and package survey exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			if output == "" {
				output = cfg.DataDir
			}
			if encrypt && password == "" {
				// No password given: fall back to the managed key, creating
				// it on first use.
				key, created, err := keystore.New(cfg.KeyFile).GetOrCreate()
				if err != nil {
					return err
				}
				if created {
					logger.Warn().Str("key_file", cfg.KeyFile).Msg("new encryption key generated; the consuming system reads it from the key file")
				}
				password = key
			}

			p := pipeline.New(pipeline.Options{
				OutputDir: output,
				Encrypt:   encrypt,
				Password:  password,
			}, logger)

			summary, err := p.ProcessPath(cmd.Context(), input)
			if err != nil {
				return err
			}
			if summary.Processed == 0 {
				return fmt.Errorf("no files were processed successfully (%d failed)", summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input file or directory (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default: DATA_DIR)")
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "Encrypt merged collections into password-protected archives")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Archive password (default: managed key)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func decryptCmd() *cobra.Command {
	var (
		file     string
		output   string
		password string
	)

	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt an encrypted collection archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			outPath, err := archive.Decrypt(file, output, password)
			if err != nil {
				return err
			}
			logger.Info().Str("file", outPath).Msg("archive decrypted")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Encrypted archive to decrypt (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Archive password (required)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func fetchCmd() *cobra.Command {
	var (
		formID string
		url    string
		token  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch form submissions from the survey platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			if url == "" {
				url = cfg.KoboAPIURL
			}
			if token == "" {
				token = cfg.KoboAPIToken
			}
			if token == "" {
				return fmt.Errorf("an API token is required (--token or KOBO_API_TOKEN)")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.KoboTimeoutSeconds)*time.Second)
			defer cancel()

			client := kobo.NewClient(url, token, time.Duration(cfg.KoboTimeoutSeconds)*time.Second)
			rows, err := client.FetchSubmissions(ctx, formID)
			if err != nil {
				return err
			}
			if err := kobo.WriteCSV(rows, output); err != nil {
				return err
			}
			logger.Info().Int("rows", len(rows)).Str("file", output).Msg("submissions fetched")
			return nil
		},
	}

	cmd.Flags().StringVar(&formID, "form-id", "", "Form identifier (required)")
	cmd.Flags().StringVar(&url, "url", "", "Survey platform base URL (default: KOBO_API_URL)")
	cmd.Flags().StringVar(&token, "token", "", "API token (default: KOBO_API_TOKEN)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV path (required)")
	_ = cmd.MarkFlagRequired("form-id")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the archive encryption key",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Generate and persist a new encryption key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if _, err := keystore.New(cfg.KeyFile).Create(); err != nil {
				return err
			}
			fmt.Printf("Encryption key created in %s\n", cfg.KeyFile)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current encryption key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			key, err := keystore.New(cfg.KeyFile).Get()
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}

	cmd.AddCommand(createCmd)
	cmd.AddCommand(showCmd)
	return cmd
}
