// Package archive packs files into zip archives whose content never
// exceeds a fixed capacity.
//
// Planning and writing are separate steps. Plan is a pure function of the
// entry order, the file sizes and the capacity:
//
//	packer := archive.NewPacker(afero.NewOsFs(), 48<<20, log)
//	plan, err := packer.Plan([]archive.Entry{
//	    {Path: "/tmp/job/cover.jpg", Name: "Album/cover.jpg", Priority: true},
//	    {Path: "/tmp/job/1.mp3", Name: "Album/01 - Artist - Song.mp3"},
//	})
//	paths, err := packer.Write(ctx, plan, "/tmp/out", "Album")
//
// Entries that cannot be placed are listed in Plan.Skipped and never abort
// the plan. A failing Write leaves no archive behind.
package archive
