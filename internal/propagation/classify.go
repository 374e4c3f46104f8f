package propagation

// Classify splits records into inter-island and island-to-mainland sets. A
// record may land in both. Records are copied through untouched.
func Classify(records []ReceptionRecord, cfg Config) (nvis, mainland []ReceptionRecord) {
	for _, rec := range records {
		senderIsland := cfg.Island.Contains(rec.SenderLat, rec.SenderLon)
		receiverIsland := cfg.Island.Contains(rec.ReceiverLat, rec.ReceiverLon)
		senderMainland := cfg.Mainland.Contains(rec.SenderLat, rec.SenderLon)
		receiverMainland := cfg.Mainland.Contains(rec.ReceiverLat, rec.ReceiverLon)

		if hasBand(cfg.NVIS, rec.Band) &&
			senderIsland && receiverIsland &&
			rec.DistanceKm <= cfg.NVISMaxKm {
			nvis = append(nvis, rec)
		}

		crossing := (senderIsland && receiverMainland) || (senderMainland && receiverIsland)
		if hasBand(cfg.MainlandPath, rec.Band) &&
			crossing &&
			cfg.MainlandMinKm <= rec.DistanceKm && rec.DistanceKm <= cfg.MainlandMaxKm {
			mainland = append(mainland, rec)
		}
	}
	return nvis, mainland
}

func hasBand(cc CategoryConfig, band string) bool {
	_, ok := cc.BandWeights[band]
	return ok
}
