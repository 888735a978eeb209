// Package download fetches and unpacks the raw corpora the source adapters read.
package download

import (
	"net/url"
	"path"
	"sort"
)

// File is one remote artifact.
type File struct {
	URL string
	// MD5 is the expected hex digest; empty skips verification.
	MD5 string
	// Name overrides the file name derived from the URL path.
	Name string
}

// FileName returns the local file name for f.
func (f File) FileName() string {
	if f.Name != "" {
		return f.Name
	}
	if u, err := url.Parse(f.URL); err == nil {
		return path.Base(u.Path)
	}
	return path.Base(f.URL)
}

// Group is a set of files downloaded together. A zip group has exactly one
// .zip file plus optional .z01… parts and is extracted after download.
type Group struct {
	Files []File
	Unzip bool
	// Rename names the directory a single extracted top-level directory is
	// moved to, relative to the corpus directory.
	Rename string
}

// Corpus describes everything downloaded into <data_dir>/<Name>.
type Corpus struct {
	Name   string
	Groups []Group
}

var corpora = map[string]Corpus{
	"esc50": {
		Name: "esc50",
		Groups: []Group{{
			Files: []File{{
				URL:  "https://github.com/karolpiczak/ESC-50/archive/33c8ce9eb2cf0b1c2f8bcf322eb349b6be34dbb6.zip",
				MD5:  "071b44018315e034b2c6e8064543d19c",
				Name: "ESC-50-master.zip",
			}},
			Unzip:  true,
			Rename: "ESC-50-master",
		}},
	},
	"foams": {
		Name: "foams",
		Groups: []Group{
			{
				Files: []File{{
					URL: "https://zenodo.org/records/8170225/files/FOAMS_processed_audio.zip?download=1",
					MD5: "89e717006cea3687384baa3c86d6307c",
				}},
				Unzip:  true,
				Rename: "processed_audio",
			},
			{
				Files: []File{{
					URL: "https://zenodo.org/records/8170225/files/segmentation_info.csv?download=1",
					MD5: "0ac1de8a66ffb52be34722ad8cd5e514",
				}},
			},
		},
	},
	"fsd50k": {
		Name: "fsd50k",
		Groups: []Group{
			{
				Files: []File{{
					URL: "https://zenodo.org/records/4060432/files/FSD50K.metadata.zip?download=1",
					MD5: "b9ea0c829a411c1d42adb9da539ed237",
				}},
				Unzip:  true,
				Rename: "metadata",
			},
			{
				Files: []File{
					{URL: "https://zenodo.org/records/4060432/files/FSD50K.eval_audio.zip?download=1", MD5: "6fa47636c3a3ad5c7dfeba99f2637982"},
					{URL: "https://zenodo.org/records/4060432/files/FSD50K.eval_audio.z01?download=1", MD5: "3090670eaeecc013ca1ff84fe4442aeb"},
				},
				Unzip:  true,
				Rename: "eval_audio",
			},
			{
				Files: []File{
					{URL: "https://zenodo.org/records/4060432/files/FSD50K.dev_audio.zip?download=1", MD5: "c480d119b8f7a7e32fdb58f3ea4d6c5a"},
					{URL: "https://zenodo.org/records/4060432/files/FSD50K.dev_audio.z01?download=1", MD5: "faa7cf4cc076fc34a44a479a5ed862a3"},
					{URL: "https://zenodo.org/records/4060432/files/FSD50K.dev_audio.z02?download=1", MD5: "8f9b66153e68571164fb1315d00bc7bc"},
					{URL: "https://zenodo.org/records/4060432/files/FSD50K.dev_audio.z03?download=1", MD5: "1196ef47d267a993d30fa98af54b7159"},
					{URL: "https://zenodo.org/records/4060432/files/FSD50K.dev_audio.z04?download=1", MD5: "d088ac4e11ba53daf9f7574c11cccac9"},
					{URL: "https://zenodo.org/records/4060432/files/FSD50K.dev_audio.z05?download=1", MD5: "81356521aa159accd3c35de22da28c7f"},
				},
				Unzip:  true,
				Rename: "dev_audio",
			},
		},
	},
	"sadie": {
		Name: "sadie",
		Groups: []Group{{
			Files:  []File{{URL: "https://www.york.ac.uk/sadie-project/Resources/SADIEIIDatabase/D2.zip"}},
			Unzip:  true,
			Rename: "D2",
		}},
	},
}

// Lookup returns the corpus named name.
func Lookup(name string) (Corpus, bool) {
	c, ok := corpora[name]
	return c, ok
}

// Names lists the downloadable corpora.
func Names() []string {
	names := make([]string, 0, len(corpora))
	for name := range corpora {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
