package mock

var demo = []struct {
	id, name, url string
	healthy       bool
	uptime        float64
	tags          []string
	latency       []float64
}{
	{"1", "Main API", "https://api.example.com", true, 99.98,
		[]string{"Production", "Critical"},
		[]float64{120, 145, 130, 125, 140, 135, 128, 142, 138, 132}},
	{"2", "Payment Gateway", "https://payments.stripe.com/health", true, 100,
		[]string{"Payments", "Third-party"},
		[]float64{80, 75, 82, 78, 85, 79, 81, 76, 83, 80}},
	{"3", "Database Primary", "https://db-primary.internal", true, 99.95,
		[]string{"Internal", "Database"},
		[]float64{15, 18, 16, 14, 17, 15, 16, 19, 15, 14}},
	{"4", "CDN Service", "https://cdn.cloudflare.com/status", false, 98.2,
		[]string{"Third-party", "CDN"},
		[]float64{200, 220, 250, 280, 310, 290, 320, 350, 340, 360}},
	{"5", "Auth Service", "https://auth.example.com/health", true, 99.99,
		[]string{"Production", "Auth"},
		[]float64{45, 48, 42, 46, 50, 47, 44, 49, 46, 45}},
	{"6", "Analytics API", "https://analytics.example.com", true, 99.5,
		[]string{"Internal", "Analytics"},
		[]float64{180, 175, 190, 185, 195, 188, 182, 192, 187, 183}},
}
