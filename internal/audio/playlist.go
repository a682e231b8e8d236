package audio

import (
	"fmt"
	"strings"
	"time"
)

// PlaylistFormat represents supported playlist file formats.
//
// Each format has different features and compatibility:
//   - M3U: Simple text format, widely supported
//   - PLS: INI-style format, used by Winamp
//   - WPL: XML format, Windows Media Player
//   - ZPL: XML format, Zune/Groove Music
type PlaylistFormat int

const (
	// FormatM3U creates .m3u files (most compatible).
	// Can be extended with EXTINF lines for duration/title info.
	FormatM3U PlaylistFormat = iota

	// FormatPLS creates .pls files (Winamp/SHOUTcast format).
	FormatPLS

	// FormatWPL creates .wpl files (Windows Media Player).
	FormatWPL

	// FormatZPL creates .zpl files (Zune/Groove Music).
	FormatZPL
)

// ParsePlaylistFormat maps a configuration value to a PlaylistFormat.
// Unknown values select M3U.
func ParsePlaylistFormat(s string) PlaylistFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pls":
		return FormatPLS
	case "wpl":
		return FormatWPL
	case "zpl":
		return FormatZPL
	default:
		return FormatM3U
	}
}

// Extension returns the file extension for the playlist format, including the dot.
func (pf PlaylistFormat) Extension() string {
	switch pf {
	case FormatPLS:
		return ".pls"
	case FormatWPL:
		return ".wpl"
	case FormatZPL:
		return ".zpl"
	default:
		return ".m3u"
	}
}

// PlaylistItem is one line of a playlist.
type PlaylistItem struct {
	// Path is the location of the media relative to the playlist file.
	Path     string
	Title    string
	Artist   string
	Duration float64
}

// Playlist is the content of one playlist file.
type Playlist struct {
	Title  string
	Artist string
	Items  []PlaylistItem
}

// PlaylistCreator generates playlist files in various formats.
//
// Example:
//
//	creator := NewPlaylistCreator(FormatM3U, true)
//	content := creator.CreatePlaylist(Playlist{
//	    Title: "Album",
//	    Items: []PlaylistItem{{Path: "01 - Artist - Song.mp3", Title: "Song", Artist: "Artist", Duration: 180}},
//	})
//
//	// Result:
//	// #EXTM3U
//	// #EXTINF:180,Artist - Song
//	// 01 - Artist - Song.mp3
type PlaylistCreator struct {
	format   PlaylistFormat
	extended bool // For M3U: include EXTINF lines with duration/title
}

// NewPlaylistCreator creates a new PlaylistCreator.
//
// extended is only meaningful for M3U, where it adds #EXTINF lines.
func NewPlaylistCreator(format PlaylistFormat, extended bool) *PlaylistCreator {
	return &PlaylistCreator{
		format:   format,
		extended: extended,
	}
}

// Format returns the format the creator writes.
func (p *PlaylistCreator) Format() PlaylistFormat {
	return p.format
}

// CreatePlaylist generates playlist content, ready to be written to a file.
func (p *PlaylistCreator) CreatePlaylist(pl Playlist) string {
	switch p.format {
	case FormatPLS:
		return p.createPLS(pl)
	case FormatWPL:
		return p.createWPL(pl)
	case FormatZPL:
		return p.createZPL(pl)
	default:
		return p.createM3U(pl)
	}
}

func itemArtist(pl Playlist, item PlaylistItem) string {
	if item.Artist != "" {
		return item.Artist
	}
	return pl.Artist
}

func (p *PlaylistCreator) createM3U(pl Playlist) string {
	var sb strings.Builder

	if p.extended {
		sb.WriteString("#EXTM3U\n")
	}

	for _, item := range pl.Items {
		if p.extended {
			sb.WriteString(fmt.Sprintf("#EXTINF:%d,%s - %s\n", int(item.Duration), itemArtist(pl, item), item.Title))
		}
		sb.WriteString(item.Path + "\n")
	}

	return sb.String()
}

// createPLS generates a PLS playlist:
//
//	[playlist]
//	File1=filename1.mp3
//	Title1=Song Title
//	Length1=180
//	NumberOfEntries=1
//	Version=2
func (p *PlaylistCreator) createPLS(pl Playlist) string {
	var sb strings.Builder

	sb.WriteString("[playlist]\n")

	for i, item := range pl.Items {
		idx := i + 1
		sb.WriteString(fmt.Sprintf("File%d=%s\n", idx, item.Path))
		sb.WriteString(fmt.Sprintf("Title%d=%s\n", idx, item.Title))
		sb.WriteString(fmt.Sprintf("Length%d=%d\n", idx, int(item.Duration)))
	}

	sb.WriteString(fmt.Sprintf("NumberOfEntries=%d\n", len(pl.Items)))
	sb.WriteString("Version=2\n")

	return sb.String()
}

func (p *PlaylistCreator) createWPL(pl Playlist) string {
	var sb strings.Builder

	sb.WriteString("<?wpl version=\"1.0\"?>\n")
	sb.WriteString("<smil>\n")
	sb.WriteString("  <head>\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", escapeXML(pl.Title)))
	sb.WriteString("  </head>\n")
	sb.WriteString("  <body>\n")
	sb.WriteString("    <seq>\n")

	for _, item := range pl.Items {
		sb.WriteString(fmt.Sprintf("      <media src=\"%s\"/>\n", escapeXML(item.Path)))
	}

	sb.WriteString("    </seq>\n")
	sb.WriteString("  </body>\n")
	sb.WriteString("</smil>\n")

	return sb.String()
}

// createZPL is WPL plus per-item album, artist and duration attributes.
func (p *PlaylistCreator) createZPL(pl Playlist) string {
	var sb strings.Builder

	sb.WriteString("<?zpl version=\"2.0\"?>\n")
	sb.WriteString("<smil>\n")
	sb.WriteString("  <head>\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", escapeXML(pl.Title)))
	sb.WriteString("    <meta name=\"Generator\" content=\"BandcampCourier\"/>\n")
	sb.WriteString(fmt.Sprintf("    <meta name=\"ItemCount\" content=\"%d\"/>\n", len(pl.Items)))
	sb.WriteString("  </head>\n")
	sb.WriteString("  <body>\n")
	sb.WriteString("    <seq>\n")

	for _, item := range pl.Items {
		duration := time.Duration(item.Duration * float64(time.Second))
		sb.WriteString(fmt.Sprintf("      <media src=\"%s\" albumTitle=\"%s\" albumArtist=\"%s\" trackTitle=\"%s\" trackArtist=\"%s\" duration=\"%d\"/>\n",
			escapeXML(item.Path),
			escapeXML(pl.Title),
			escapeXML(pl.Artist),
			escapeXML(item.Title),
			escapeXML(itemArtist(pl, item)),
			duration.Milliseconds()))
	}

	sb.WriteString("    </seq>\n")
	sb.WriteString("  </body>\n")
	sb.WriteString("</smil>\n")

	return sb.String()
}

// escapeXML escapes & < > " and ' for attribute and text content.
func escapeXML(s string) string {
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	).Replace(s)
}
