package features

import "DDoSDefender/internal/model"

// Extract projects the most recent record of a newest-first list into a
// FeatureVector. An empty list yields the zero vector. Older records are
// accepted but not used. No clamping is applied, so the normalized packet
// and source counts can exceed 1.
func Extract(recent []model.FeatureRecord) model.FeatureVector {
	if len(recent) == 0 {
		return model.FeatureVector{}
	}
	return project(&recent[0])
}

func project(r *model.FeatureRecord) model.FeatureVector {
	m := r.Metrics
	return model.FeatureVector{
		m.SYNRatio,
		m.TCPRatio,
		m.UDPRatio,
		m.ICMPRatio,
		m.SourceEntropy,
		m.DestinationEntropy,
		float64(m.PacketCount) / 1000,
		float64(m.UniqueSourceCount) / 100,
	}
}

// ExtractSequence returns the vectors of the newest length records in
// chronological order (oldest first). When fewer records exist the sequence
// is padded at the front with zero vectors so it always has length entries.
func ExtractSequence(recent []model.FeatureRecord, length int) []model.FeatureVector {
	if length <= 0 {
		return nil
	}
	seq := make([]model.FeatureVector, length)
	n := len(recent)
	if n > length {
		n = length
	}
	// recent[0] is the newest record and goes last.
	for i := 0; i < n; i++ {
		seq[length-1-i] = project(&recent[i])
	}
	return seq
}
