package model

import "fmt"

// Placeholder values the backend uses when it has no name or address.
const (
	noPlaceName = "장소명 없음"
	noAddress   = "주소 정보 없음"
)

// CandidatePoint is one ranked meeting-point proposal.
type CandidatePoint struct {
	Rank              int     `json:"rank"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	Address           string  `json:"address"`
	PlaceName         string  `json:"placeName"`
	AverageTravelTime float64 `json:"averageTravelTime"`
	CommercialScore   float64 `json:"commercialScore"`
	OverallScore      float64 `json:"overallScore"`
}

// DisplayName returns the place name, or "후보지점 {rank}" when the backend sent none.
func (c CandidatePoint) DisplayName() string {
	if c.PlaceName != "" && c.PlaceName != noPlaceName {
		return c.PlaceName
	}
	return fmt.Sprintf("후보지점 %d", c.Rank)
}

// DisplayAddress returns the address, or the coordinates when the backend sent none.
func (c CandidatePoint) DisplayAddress() string {
	if c.Address != "" && c.Address != noAddress {
		return c.Address
	}
	return fmt.Sprintf("%.4f, %.4f", c.Latitude, c.Longitude)
}

// RankLabel is the badge text shown on the candidate card.
func (c CandidatePoint) RankLabel() string {
	if c.Rank == 1 {
		return "🏆 최적"
	}
	return fmt.Sprintf("%d위", c.Rank)
}

// CommercialBand classifies the commercial score.
func (c CandidatePoint) CommercialBand() CommercialBand {
	return BandForScore(c.CommercialScore)
}

// CommercialBand is a qualitative description of commercial density.
type CommercialBand string

const (
	BandActive    CommercialBand = "active"
	BandDeveloped CommercialBand = "developed"
	BandModerate  CommercialBand = "moderate"
	BandQuiet     CommercialBand = "quiet"
)

// BandForScore maps a 0–100 commercial score onto its band.
func BandForScore(score float64) CommercialBand {
	switch {
	case score >= 80:
		return BandActive
	case score >= 60:
		return BandDeveloped
	case score >= 40:
		return BandModerate
	default:
		return BandQuiet
	}
}

// Description returns the user-facing text for the band.
func (b CommercialBand) Description() string {
	switch b {
	case BandActive:
		return "활발한 상권"
	case BandDeveloped:
		return "발달한 상권"
	case BandModerate:
		return "보통 상권"
	default:
		return "한적한 지역"
	}
}
