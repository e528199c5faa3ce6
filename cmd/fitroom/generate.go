package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fitroom/internal/config"
	"fitroom/internal/genimage"
)

// generateCmd runs single render operations against the image backend
// without a running server. Useful for trying prompts and checking
// GEMINI_API_KEY wiring before deploying.
func generateCmd() *cobra.Command {
	g := &cobra.Command{Use: "generate", Short: "Run one-off render operations"}
	g.AddCommand(generateModelCmd())
	g.AddCommand(generateTryOnCmd())
	g.AddCommand(generatePoseCmd())
	return g
}

func generateModelCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Render a person photo into a dressable model",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := openGateway(cmd)
			if err != nil {
				return err
			}
			defer gw.Close()
			person, err := readImage(in)
			if err != nil {
				return err
			}
			img, err := gw.GenerateModel(cmd.Context(), person)
			if err != nil {
				return err
			}
			return writeImage(out, img)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "person photo path")
	cmd.Flags().StringVar(&out, "out", "model.png", "output path")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func generateTryOnCmd() *cobra.Command {
	var base, garment, name, out string
	cmd := &cobra.Command{
		Use:   "tryon",
		Short: "Render a garment onto a model image",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := openGateway(cmd)
			if err != nil {
				return err
			}
			defer gw.Close()
			baseImg, err := readImage(base)
			if err != nil {
				return err
			}
			garmentImg, err := readImage(garment)
			if err != nil {
				return err
			}
			img, err := gw.GenerateTryOn(cmd.Context(), baseImg, garmentImg, name)
			if err != nil {
				return err
			}
			return writeImage(out, img)
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "model image path")
	cmd.Flags().StringVar(&garment, "garment", "", "garment image path")
	cmd.Flags().StringVar(&name, "name", "", "garment name for the prompt")
	cmd.Flags().StringVar(&out, "out", "tryon.png", "output path")
	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("garment")
	return cmd
}

func generatePoseCmd() *cobra.Command {
	var base, pose, out string
	cmd := &cobra.Command{
		Use:   "pose",
		Short: "Re-render an outfit image in another pose",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pose == "" {
				return errors.New("--pose required (see 'fitroom poses')")
			}
			gw, err := openGateway(cmd)
			if err != nil {
				return err
			}
			defer gw.Close()
			baseImg, err := readImage(base)
			if err != nil {
				return err
			}
			img, err := gw.GeneratePose(cmd.Context(), baseImg, pose)
			if err != nil {
				return err
			}
			return writeImage(out, img)
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "outfit image path")
	cmd.Flags().StringVar(&pose, "pose", "", "pose description")
	cmd.Flags().StringVar(&out, "out", "posed.png", "output path")
	_ = cmd.MarkFlagRequired("base")
	return cmd
}

func openGateway(cmd *cobra.Command) (genimage.Gateway, error) {
	cfg := config.FromEnv()
	if cfg.Gemini.Fake || cfg.Gemini.APIKey == "" {
		fmt.Fprintln(os.Stderr, "GEMINI_API_KEY not set, using fake renderer")
		return genimage.NewFake(), nil
	}
	gemini, err := genimage.NewGemini(cmd.Context(), cfg.Gemini.Model, cfg.Gemini.Timeout)
	if err != nil {
		return nil, err
	}
	return genimage.Wrap(gemini, genimage.Retry(3, time.Second)), nil
}

func readImage(path string) (genimage.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return genimage.Image{}, err
	}
	return genimage.Image{Data: data, MIME: http.DetectContentType(data)}, nil
}

func writeImage(path string, img genimage.Image) error {
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes, %s)\n", path, len(img.Data), img.MIME)
	return nil
}
