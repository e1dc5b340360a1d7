package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/threadline/reconciler/internal/domain"
)

// Generates deterministic demo data: purchase-order lines and the
// shipment manifests that (mostly) fulfil them, with the kinds of
// drift the matcher exists to absorb: delivery-method synonyms, color
// formatting differences, quantity variance and split shipments.
func main() {
	rng := rand.New(rand.NewSource(7))
	baseDir := findTestdataDir()

	styles := []string{
		"TL-1001", "TL-1002", "TL-1045", "TL-2210", "TL-2211",
		"TL-3300", "TL-3301", "TL-4150", "TL-5520", "TL-5521",
	}
	colors := []string{
		"ARCTIC BLUE", "JET BLACK", "HEATHER GREY", "BURNT ORANGE",
		"FOREST GREEN", "OFF WHITE", "NAVY", "CRIMSON RED",
	}
	deliveries := []string{"AIR", "SEA", "GROUND"}

	// Synonyms and formatting drift applied on the shipment side.
	deliveryDrift := map[string][]string{
		"AIR":    {"AIR", "EXPRESS", "EXPEDITED", "Overnight"},
		"SEA":    {"SEA", "OCEAN", "Boat"},
		"GROUND": {"GROUND", "STANDARD", "regular"},
	}
	colorDrift := func(c string) string {
		switch rng.Intn(4) {
		case 0:
			return replaceSpace(c, "/")
		case 1:
			return replaceSpace(c, " - ")
		default:
			return c
		}
	}

	type customerSpec struct {
		name string
		pos  []string
	}
	customers := []customerSpec{
		{"Northpeak Outfitters", []string{"PO-88101", "PO-88102", "PO-88103"}},
		{"Harbor & Lane", []string{"PO-55201", "PO-55202"}},
	}

	orderDate := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	var orders []domain.Order
	var shipments []domain.Shipment
	oSeq, sSeq := 0, 0

	for _, c := range customers {
		for _, po := range c.pos {
			lines := 6 + rng.Intn(5)
			for i := 0; i < lines; i++ {
				oSeq++
				style := styles[rng.Intn(len(styles))]
				color := colors[rng.Intn(len(colors))]
				delivery := deliveries[rng.Intn(len(deliveries))]
				qty := (2 + rng.Intn(30)) * 10

				order := domain.Order{
					ID:               fmt.Sprintf("ORD-%05d", oSeq),
					Customer:         c.name,
					PONumber:         po,
					StyleCode:        style,
					ColorDescription: color,
					DeliveryMethod:   delivery,
					Quantity:         qty,
					OrderType:        domain.OrderActive,
					OrderDate:        orderDate.AddDate(0, 0, rng.Intn(14)),
				}

				// 6% cancelled; cancelled orders must not match.
				if rng.Float64() < 0.06 {
					order.OrderType = domain.OrderCancelled
				}
				orders = append(orders, order)

				if order.OrderType == domain.OrderCancelled {
					continue
				}

				roll := rng.Float64()
				switch {
				case roll < 0.08:
					// Not yet shipped.
				case roll < 0.25:
					// Split into two cartons.
					first := qty * (40 + rng.Intn(30)) / 100
					for _, part := range []int{first, qty - first} {
						sSeq++
						shipments = append(shipments, domain.Shipment{
							ID:               fmt.Sprintf("SHP-%05d", sSeq),
							Customer:         c.name,
							PONumber:         po,
							StyleCode:        style,
							ColorDescription: colorDrift(color),
							DeliveryMethod:   pick(rng, deliveryDrift[delivery]),
							Quantity:         part,
							ShippedDate:      order.OrderDate.AddDate(0, 0, 10+rng.Intn(20)),
						})
					}
				default:
					// Single shipment, quantity within ±12% of ordered.
					shipped := qty + int(float64(qty)*(rng.Float64()*0.24-0.12))
					sSeq++
					shipments = append(shipments, domain.Shipment{
						ID:               fmt.Sprintf("SHP-%05d", sSeq),
						Customer:         c.name,
						PONumber:         po,
						StyleCode:        style,
						ColorDescription: colorDrift(color),
						DeliveryMethod:   pick(rng, deliveryDrift[delivery]),
						Quantity:         shipped,
						ShippedDate:      order.OrderDate.AddDate(0, 0, 10+rng.Intn(20)),
					})
				}
			}

			// One stray carton per PO with no matching order line.
			sSeq++
			shipments = append(shipments, domain.Shipment{
				ID:               fmt.Sprintf("SHP-%05d", sSeq),
				Customer:         c.name,
				PONumber:         po,
				StyleCode:        fmt.Sprintf("ZZ-%04d", 9000+rng.Intn(999)),
				ColorDescription: "UNLISTED",
				DeliveryMethod:   "GROUND",
				Quantity:         10 + rng.Intn(40),
				ShippedDate:      orderDate.AddDate(0, 0, 20),
			})
		}
	}

	writeJSONFile(filepath.Join(baseDir, "orders.json"), orders)
	fmt.Printf("Generated %d orders -> orders.json\n", len(orders))

	writeJSONFile(filepath.Join(baseDir, "shipments.json"), shipments)
	fmt.Printf("Generated %d shipments -> shipments.json\n", len(shipments))

	fmt.Println("Test data generation complete.")
}

func pick(rng *rand.Rand, opts []string) string {
	return opts[rng.Intn(len(opts))]
}

func replaceSpace(s, sep string) string {
	out := ""
	for _, r := range s {
		if r == ' ' {
			out += sep
			continue
		}
		out += string(r)
	}
	return out
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	candidates := []string{"testdata", "./testdata"}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}
