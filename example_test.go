// example_test.go: Executable examples for godoc
//
// These examples appear in the generated documentation and are executable.
// Run with: go test -run Example

package charon_test

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/agilira/charon"
)

// ExampleNew demonstrates size rotation with numbered archives.
func ExampleNew() {
	dir, err := os.MkdirTemp("", "charon-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ch, err := charon.New(filepath.Join(dir, "app.log"))
	if err != nil {
		log.Fatal(err)
	}
	defer ch.Close()

	_ = ch.PutAttr("rotate", "size")
	_ = ch.PutAttr("rotate.size", "16")
	_ = ch.PutAttr("archive", "number")

	for _, text := range []string{"first long message", "second long message", "third"} {
		if err := ch.Log(charon.NewMessage("example", text, charon.PriorityInfo)); err != nil {
			log.Printf("Warning: failed to log: %v", err)
		}
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		fmt.Println(e.Name())
	}
	// Output:
	// app.log
	// app.log.0
	// app.log.1
}

// ExampleAttributeStore_Load demonstrates loading attributes from YAML.
func ExampleAttributeStore_Load() {
	attrs := charon.NewAttributeStore()
	err := attrs.Load([]byte(`
rotate: interval
rotate.interval: "01:00:00"
archive: timestamp
compression_mode: gzip
`), charon.FormatYAML)
	if err != nil {
		log.Fatal(err)
	}

	s := attrs.Settings()
	fmt.Println(s.Rotate, s.RotateInterval, s.Archive, s.Compression)
	// Output: interval 1h0m0s timestamp gzip
}

// ExampleParseSize demonstrates the size syntax of rotate.size.
func ExampleParseSize() {
	for _, s := range []string{"57", "1k", "10M", "1kb"} {
		n, err := charon.ParseSize(s)
		if err != nil {
			fmt.Println(s, "invalid")
			continue
		}
		fmt.Println(s, n)
	}
	// Output:
	// 57 57
	// 1k 1024
	// 10M 10485760
	// 1kb invalid
}

// ExampleFileChannel_PutAttr demonstrates configuration errors.
func ExampleFileChannel_PutAttr() {
	ch, err := charon.New(filepath.Join(os.TempDir(), "charon-putattr.log"))
	if err != nil {
		log.Fatal(err)
	}

	err = ch.PutAttr("compression_mode", "lz4")
	fmt.Println(errors.Is(err, charon.ErrInvalidValue))

	err = ch.PutAttr("rotation", "size")
	fmt.Println(errors.Is(err, charon.ErrUnknownAttribute))
	// Output:
	// true
	// true
}

// ExampleNewAsyncChannel demonstrates non-blocking logging.
func ExampleNewAsyncChannel() {
	dir, err := os.MkdirTemp("", "charon-async")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ch, err := charon.New(filepath.Join(dir, "app.log"))
	if err != nil {
		log.Fatal(err)
	}

	async := charon.NewAsyncChannel(ch, charon.AsyncOptions{BufferSize: 256})
	for i := 0; i < 3; i++ {
		_ = async.Log(charon.NewMessage("worker", fmt.Sprintf("job %d done", i), charon.PriorityInfo))
	}
	_ = async.Close()

	data, _ := os.ReadFile(ch.Path())
	fmt.Print(string(data))
	// Output:
	// job 0 done
	// job 1 done
	// job 2 done
}
