package guide

import (
	"encoding/xml"
	"fmt"
	"time"
)

// xmltvTimeLayout is the 14-char UTC XMLTV time format.
const xmltvTimeLayout = "20060102150405 -0700"

func xmltvTime(t time.Time) string {
	return t.UTC().Format(xmltvTimeLayout)
}

// xmlDocument is the root <tv> element.
type xmlDocument struct {
	XMLName    xml.Name       `xml:"tv"`
	SourceInfo string         `xml:"source-info-name,attr"`
	Channels   []xmlChannel   `xml:"channel"`
	Programmes []xmlProgramme `xml:"programme"`
}

type xmlChannel struct {
	ID          string `xml:"id,attr"`
	DisplayName string `xml:"display-name"`
	Icon        *xmlIcon `xml:"icon,omitempty"`
}

type xmlIcon struct {
	Src string `xml:"src,attr"`
}

type xmlProgramme struct {
	Start      string     `xml:"start,attr"`
	Stop       string     `xml:"stop,attr"`
	Channel    string     `xml:"channel,attr"`
	Title      string     `xml:"title"`
	Desc       string     `xml:"desc,omitempty"`
	Categories []string   `xml:"category,omitempty"`
	Icon       *xmlIcon   `xml:"icon,omitempty"`
	Live       *struct{}  `xml:"live,omitempty"`
	New        *struct{}  `xml:"new,omitempty"`
}

// Channel is the emitter-facing input for one <channel> element.
type Channel struct {
	ID          string
	DisplayName string
	IconURL     string
}

// Programme is the emitter-facing input for one <programme> element.
type Programme struct {
	ChannelID  string
	Start      time.Time
	Stop       time.Time
	Title      string
	Desc       string
	Categories []string
	IconURL    string
	Live       bool
	IsReair    bool
}

// BuildXMLTV serializes channels and programmes into a complete XMLTV
// document: 14-char UTC times, <live/>/<new/> tags, and <icon> elements.
func BuildXMLTV(channels []Channel, programmes []Programme) ([]byte, error) {
	doc := xmlDocument{SourceInfo: "dvrguide"}
	for _, c := range channels {
		xc := xmlChannel{ID: c.ID, DisplayName: c.DisplayName}
		if c.IconURL != "" {
			xc.Icon = &xmlIcon{Src: c.IconURL}
		}
		doc.Channels = append(doc.Channels, xc)
	}
	for _, p := range programmes {
		xp := xmlProgramme{
			Start:      xmltvTime(p.Start),
			Stop:       xmltvTime(p.Stop),
			Channel:    p.ChannelID,
			Title:      p.Title,
			Desc:       p.Desc,
			Categories: p.Categories,
		}
		if p.IconURL != "" {
			xp.Icon = &xmlIcon{Src: p.IconURL}
		}
		if p.Live {
			xp.Live = &struct{}{}
		}
		if !p.IsReair {
			xp.New = &struct{}{}
		}
		doc.Programmes = append(doc.Programmes, xp)
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("guide: marshal xmltv: %w", err)
	}
	out := []byte(xml.Header)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}
