package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	inkwell "github.com/inkwell-cms/inkwell"
	"github.com/inkwell-cms/inkwell/pkg/repo"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

func str(s string) *string { return &s }

func main() {
	fmt.Println("Starting inkwell example")

	base, _ := filepath.Abs("ExamplePath/" + time.Now().Format("20060102-150405"))

	engine, err := inkwell.New(inkwell.Config{
		DataDir:   filepath.Join(base, "data"),
		WorkDir:   filepath.Join(base, "work"),
		PublicDir: filepath.Join(base, "public"),
	})
	if err != nil {
		log.Fatalf("Failed to initialize inkwell: %s", err)
	}
	defer engine.Close()

	engine.Subscribe(func(e types.Event) {
		fmt.Printf("event: %s\n", e.EventName())
	})

	ctx := context.Background()

	// Create a tutorial and give it a part/chapter/section structure.
	content, err := engine.CreateContent(ctx, "Learn Go", types.KindTutorial, []string{"example-author"}, "CC BY-SA 4.0")
	if err != nil {
		log.Fatalf("Error creating content: %s", err)
	}
	fmt.Printf("Created content %d (%s)\n", content.ID, content.Slug)

	if _, err = engine.Repo.AddContainer(ctx, content.ID, types.Hash{}, nil, "Getting Started", str("Welcome!"), nil); err != nil {
		log.Fatalf("Error adding part: %s", err)
	}
	if _, err = engine.Repo.AddContainer(ctx, content.ID, types.Hash{}, []string{"getting-started"}, "Installation", nil, nil); err != nil {
		log.Fatalf("Error adding chapter: %s", err)
	}
	if _, err = engine.Repo.AddExtract(ctx, content.ID, types.Hash{}, []string{"getting-started", "installation"}, "Linux", str("Use your package manager.")); err != nil {
		log.Fatalf("Error adding section: %s", err)
	}

	// Edit a section, then materialize the draft as files.
	if _, err = engine.Repo.UpdateNode(ctx, content.ID, types.Hash{}, []string{"getting-started", "installation", "linux"}, repo.NodeUpdate{
		Text: repo.SetText("Use your package manager, or download a tarball."),
	}); err != nil {
		log.Fatalf("Error updating section: %s", err)
	}
	workDir, err := engine.Repo.MaterializeDraft(ctx, content.ID)
	if err != nil {
		log.Fatalf("Error materializing draft: %s", err)
	}
	fmt.Printf("Draft materialized at %s\n", workDir)

	// Publish the draft head as the first public version.
	record, err := engine.Publications.Publish(ctx, content.ID, types.Hash{}, true)
	if err != nil {
		log.Fatalf("Error publishing: %s", err)
	}
	fmt.Printf("Published as /%s (snapshot %s)\n", record.PublicSlug, record.Directory)

	// Keep editing; the snapshot stays frozen until the next publication.
	if _, err = engine.Repo.AddExtract(ctx, content.ID, types.Hash{}, []string{"getting-started", "installation"}, "macOS", str("Use brew.")); err != nil {
		log.Fatalf("Error adding section: %s", err)
	}
	changed, err := engine.Repo.ChangedSincePublication(content.ID)
	if err != nil {
		log.Fatalf("Error comparing draft and public version: %s", err)
	}
	fmt.Printf("Draft changed since publication: %v\n", changed)

	second, err := engine.Publications.Publish(ctx, content.ID, types.Hash{}, false)
	if err != nil {
		log.Fatalf("Error republishing: %s", err)
	}
	fmt.Printf("Republished as /%s, predecessor %s now redirects\n", second.PublicSlug, second.PredecessorID)
}
