package domain

// DefaultLeagues is the built-in league table used when no tiers.yml is found.
func DefaultLeagues() []Tier {
	return []Tier{
		{Name: "Bronze", MinPoints: 0, MaxPoints: 999, Icon: "league-bronze", Benefits: []string{"Donor badge"}},
		{Name: "Silver", MinPoints: 1000, MaxPoints: 2999, Icon: "league-silver", Benefits: []string{"Donor badge", "Monthly impact report"}},
		{Name: "Gold", MinPoints: 3000, MaxPoints: 6999, Icon: "league-gold", Benefits: []string{"Donor badge", "Monthly impact report", "Ramadan campaign early access"}},
		{Name: "Platinum", MinPoints: 7000, MaxPoints: 14999, Icon: "league-platinum", Benefits: []string{"Donor badge", "Monthly impact report", "Ramadan campaign early access", "Masjid project updates"}},
		{Name: "Diamond", MinPoints: 15000, MaxPoints: Unbounded, Icon: "league-diamond", Benefits: []string{"Donor badge", "Monthly impact report", "Ramadan campaign early access", "Masjid project updates", "Leaderboard highlight"}},
	}
}

// DefaultRanks is the built-in rank table used when no tiers.yml is found.
func DefaultRanks() []Tier {
	return []Tier{
		{Name: "Seeker", MinPoints: 0, MaxPoints: 499, Icon: "rank-seeker", Benefits: []string{}},
		{Name: "Giver", MinPoints: 500, MaxPoints: 1999, Icon: "rank-giver", Benefits: []string{"Profile frame"}},
		{Name: "Benefactor", MinPoints: 2000, MaxPoints: 4999, Icon: "rank-benefactor", Benefits: []string{"Profile frame", "Custom title"}},
		{Name: "Philanthropist", MinPoints: 5000, MaxPoints: 9999, Icon: "rank-philanthropist", Benefits: []string{"Profile frame", "Custom title", "Sponsor shout-out"}},
		{Name: "Guardian", MinPoints: 10000, MaxPoints: Unbounded, Icon: "rank-guardian", Benefits: []string{"Profile frame", "Custom title", "Sponsor shout-out", "Guardian wall"}},
	}
}

// DefaultTables returns validated built-in tables keyed by kind.
func DefaultTables() map[Kind]Table {
	leagues, err := NewTable(KindLeague, DefaultLeagues())
	if err != nil {
		panic(err)
	}
	ranks, err := NewTable(KindRank, DefaultRanks())
	if err != nil {
		panic(err)
	}
	return map[Kind]Table{
		KindLeague: leagues,
		KindRank:   ranks,
	}
}

// ParseKind normalises a kind name.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindLeague, "leagues":
		return KindLeague, nil
	case KindRank, "ranks":
		return KindRank, nil
	default:
		return "", ErrUnknownKind
	}
}
