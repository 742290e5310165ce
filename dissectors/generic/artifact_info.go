// Package generic holds dissectors that apply to any file.
package generic

import (
	"context"
	"iter"

	"plasma/dissector"
	"plasma/evidence"
	"plasma/identify"
)

func NewArtifactInfo() *dissector.Dissector {
	return dissector.New(dissector.Config{
		Slug: "generic_artifact_info",
		Tags: []dissector.Tag{
			dissector.TagGeneric,
			dissector.TagWindows,
			dissector.TagLinux,
			dissector.TagAndroid,
			dissector.TagDarwin,
			dissector.TagIOS,
		},
		Description: "Generic artifact information",
		Columns: dissector.Schema{
			{Name: "mime", Type: dissector.TypeString},
			{Name: "extension", Type: dissector.TypeString},
			{Name: "size", Type: dissector.TypeInt},
			{Name: "sha256", Type: dissector.TypeString},
		},
		Select: func(ctx context.Context, root string) iter.Seq[string] {
			return dissector.Scan(ctx, root, "*")
		},
		Dissect: dissectArtifactInfo,
	})
}

func dissectArtifactInfo(ctx context.Context, dc *dissector.Context) iter.Seq2[dissector.Record, error] {
	return func(yield func(dissector.Record, error) bool) {
		id, err := identify.File(dc.Path)
		if err != nil {
			yield(nil, err)
			return
		}
		digest, err := evidence.DigestFile(dc.Path)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(dissector.Record{
			"mime":      id.MIME,
			"extension": id.Extension,
			"size":      digest.SizeBytes,
			"sha256":    digest.SHA256,
		}, nil)
	}
}

func Dissectors() []*dissector.Dissector {
	return []*dissector.Dissector{NewArtifactInfo()}
}
