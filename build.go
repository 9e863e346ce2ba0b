//go:build ignore

// build.go - Supply Chain Dashboard build script
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, web, processor, test, clean

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const module = "scdash"

// BuildContext holds configuration for the build process
type BuildContext struct {
	Verbose bool
	DistDir string
}

var (
	// key = source dir under cmd/, value = output name without extension
	executables = map[string]string{
		"web":       "scdash-web",
		"processor": "scdash-processor",
	}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	dist := flag.String("dist", "dist", "Output directory")
	flag.Parse()

	printHeader()

	startTime := time.Now()
	ctx := &BuildContext{Verbose: *verbose, DistDir: *dist}

	switch *target {
	case "all":
		buildAll(ctx)
	case "web", "processor":
		prepareDist(ctx)
		buildExecutable(*target, ctx)
	case "test":
		runTests(ctx)
	case "clean":
		clean(ctx)
	default:
		showHelp()
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "   Supply Chain Dashboard - Build System   " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func printWarning(msg string) {
	fmt.Printf("%s[WARNING]%s %s\n", colorYellow, colorReset, msg)
}

func buildAll(ctx *BuildContext) {
	printInfo("Building all components...")
	prepareDist(ctx)
	for name := range executables {
		buildExecutable(name, ctx)
	}
	copySQL(ctx)
}

func prepareDist(ctx *BuildContext) {
	if err := os.MkdirAll(ctx.DistDir, 0755); err != nil {
		printError(fmt.Sprintf("Failed to create %s: %v", ctx.DistDir, err))
		os.Exit(1)
	}
}

func buildExecutable(name string, ctx *BuildContext) {
	exeName, ok := executables[name]
	if !ok {
		printError(fmt.Sprintf("Unknown executable: %s", name))
		os.Exit(1)
	}
	if runtime.GOOS == "windows" {
		exeName += ".exe"
	}

	printInfo(fmt.Sprintf("Building %s...", name))

	outputPath := filepath.Join(ctx.DistDir, exeName)
	ldflags := fmt.Sprintf("-s -w -X %s/internal/app.BuildTime=%s",
		module, time.Now().UTC().Format(time.RFC3339))

	args := []string{"build", "-ldflags", ldflags, "-o", outputPath, "./cmd/" + name}
	if ctx.Verbose {
		args = append([]string{"build", "-v"}, args[1:]...)
		fmt.Printf("Running: go %s\n", strings.Join(args, " "))
	}

	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", name, err))
		os.Exit(1)
	}

	if info, err := os.Stat(outputPath); err == nil {
		sizeMB := float64(info.Size()) / 1024 / 1024
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", exeName, sizeMB))
	}
}

// copySQL ships the sample report queries next to the binaries.
func copySQL(ctx *BuildContext) {
	src := filepath.Join("sql", "queries.sql")
	data, err := os.ReadFile(src)
	if err != nil {
		printWarning(fmt.Sprintf("No sample queries copied: %v", err))
		return
	}
	dst := filepath.Join(ctx.DistDir, "sql", "queries.sql")
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err == nil {
		err = os.WriteFile(dst, data, 0644)
	}
	if err != nil {
		printWarning(fmt.Sprintf("Failed to copy %s: %v", src, err))
	}
}

func runTests(ctx *BuildContext) {
	printInfo("Running Go tests...")
	args := []string{"test", "-race"}
	if ctx.Verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")

	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Go tests failed: %v", err))
		os.Exit(1)
	}
}

func clean(ctx *BuildContext) {
	printInfo("Cleaning build artifacts...")
	if err := os.RemoveAll(ctx.DistDir); err != nil {
		printError(fmt.Sprintf("Failed to clean %s: %v", ctx.DistDir, err))
	}
}

func showHelp() {
	fmt.Println("Usage: go run build.go -target=<target> [-v] [-dist=DIR]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all        Build web and processor into the dist directory")
	fmt.Println("  web        Build the dashboard server")
	fmt.Println("  processor  Build the batch processor")
	fmt.Println("  test       Run all Go tests with the race detector")
	fmt.Println("  clean      Remove the dist directory")
}
