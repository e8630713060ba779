package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mhpenta/imagestudio"
	"github.com/spf13/cobra"
)

var (
	genSize     string
	genProvider string
	genOutput   string
	genWait     time.Duration
)

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate an image from a prompt",
	Long: `Generate an image from a text prompt.

Examples:
  imagestudio generate "a red cube"
  imagestudio generate "a red cube" --size 512x512 --output ./out
  imagestudio generate "a red cube" --provider gemini`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerateOrEdit(cmd, args[0], nil)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <image> <prompt>",
	Short: "Edit an existing image",
	Long: `Edit an image given as a local file, URL or data URI.

Providers without native editing regenerate from the prompt instead; the result
is then reported as degraded.

Examples:
  imagestudio edit cat.png "add a hat"
  imagestudio edit https://example.com/cat.png "add a hat" --provider modelscope`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := loadSource(args[0])
		if err != nil {
			return err
		}
		return runGenerateOrEdit(cmd, args[1], source)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd, editCmd)

	for _, c := range []*cobra.Command{generateCmd, editCmd} {
		c.Flags().StringVar(&genSize, "size", "", "Output size: 256x256, 512x512, 720x1280, 1280x720, 1024x1024")
		c.Flags().StringVar(&genProvider, "provider", "", "Provider name (default from config)")
		c.Flags().StringVar(&genOutput, "output", ".", "Directory for inline images")
		c.Flags().DurationVar(&genWait, "wait-rate-limit", 0, "Wait up to this long for rate limit capacity")
	}
}

// loadSource reads a local file, or parses a URL or data URI.
func loadSource(arg string) (*imagestudio.ImageRef, error) {
	if _, err := os.Stat(arg); err == nil {
		return imagestudio.LoadImageFile(arg)
	}
	return imagestudio.ParseImageRef(arg)
}

func runGenerateOrEdit(cmd *cobra.Command, prompt string, source *imagestudio.ImageRef) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []imagestudio.CallOption
	if genProvider != "" {
		opts = append(opts, imagestudio.UseProvider(genProvider))
	}
	if genWait > 0 {
		opts = append(opts, imagestudio.WaitOnRateLimit(genWait))
	}

	size := imagestudio.ImageSize(genSize)
	result, err := a.orch.GenerateOrEdit(ctx, prompt, source, size, opts...)
	if err != nil {
		return describeError(err)
	}

	out := cmd.OutOrStdout()
	if !result.HasImage() {
		fmt.Fprintf(out, "No image returned. Provider said: %s\n", result.Text)
		return nil
	}

	stored, err := imagestudio.SaveImage(ctx, &imagestudio.FileStorage{Dir: genOutput}, result.Image,
		filepath.Join("imagestudio", time.Now().Format("20060102-150405")))
	if err != nil {
		return err
	}

	item, err := imagestudio.NewHistoryItem(userID, imagestudio.NewGenerationRequest(prompt, source, size), result)
	if err == nil {
		err = a.history.Save(ctx, item)
	}
	if err != nil {
		a.logger.Warn("failed to save history", "error", err.Error())
	}

	printResult(out, result, stored)
	return nil
}

func printResult(w io.Writer, result *imagestudio.GenerationResult, stored *imagestudio.StorageResult) {
	fmt.Fprintf(w, "Image: %s\n", stored.URL)
	fmt.Fprintf(w, "Provider: %s", result.Provider)
	if result.Model != "" {
		fmt.Fprintf(w, " (%s)", result.Model)
	}
	fmt.Fprintln(w)
	if result.Degraded {
		fmt.Fprintln(w, "Note: provider cannot edit natively; the image was regenerated from the prompt.")
	}
	if result.Text != "" {
		fmt.Fprintf(w, "Text: %s\n", result.Text)
	}
}

// describeError adds user-facing guidance for the error kinds callers can act on.
func describeError(err error) error {
	switch imagestudio.KindOf(err) {
	case imagestudio.KindTimeout:
		return fmt.Errorf("%w (try again later, the task may still be processing)", err)
	case imagestudio.KindRateLimit:
		return fmt.Errorf("%w (use --wait-rate-limit to wait for capacity)", err)
	default:
		return err
	}
}
