// Command texloaddemo loads the textures named on the command line and
// prints what the loader did with them. It uses a metadata-only uploader,
// so it runs without a GPU; wire backend/native.NewUploaderFromProvider
// instead for real uploads.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/texload"
	_ "github.com/gogpu/texload/texfmt"
)

func main() {
	var (
		sync      = flag.Bool("sync", false, "drive each load to completion before the next")
		verbose   = flag.Bool("v", false, "enable debug logging")
		watermark = flag.Uint64("watermark", 0, "memory watermark in bytes (0 disables)")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("usage: texloaddemo [-sync] [-v] file.dds [file.png ...]")
	}
	if *verbose {
		texload.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	loader := texload.NewLoader(
		texload.WithUploader(describeUploader{}),
		texload.WithMemoryWatermark(*watermark),
	)
	defer loader.Close()

	hint := texload.Asynchronous
	if *sync {
		hint = texload.Synchronous
	}

	handles := make([]texload.Handle, 0, flag.NArg())
	for _, path := range flag.Args() {
		handles = append(handles, loader.Load(path, texload.Shape2D, texload.LoadOptions{Hint: hint}))
	}

	for i, h := range handles {
		tex, err := h.Result()
		if err != nil {
			fmt.Printf("%-40s ERROR %v\n", flag.Arg(i), err)
		} else {
			d := tex.Desc()
			fmt.Printf("%-40s %dx%d mips=%d layers=%d format=%v\n",
				flag.Arg(i), d.Width, d.Height, d.MipLevelCount, d.Layers, d.Format)
		}
		h.Dispose()
	}
}

// describeUploader accepts uploads and throws the pixels away; the demo
// only reports metadata.
type describeUploader struct{}

func (describeUploader) CreateTexture(desc texload.TextureDesc) (texload.Texture, error) {
	return &describedTexture{desc: desc}, nil
}

type describedTexture struct{ desc texload.TextureDesc }

func (t *describedTexture) Desc() texload.TextureDesc { return t.desc }

func (t *describedTexture) Write(level, layer uint32, data []byte) *texload.Completion[struct{}] {
	return texload.CompletedOf(struct{}{})
}

func (t *describedTexture) MakeUnreadable() {}

func (t *describedTexture) Destroy() {}
