package metadata

import "fmt"

// DemoRows is the size of the synthetic metadata table.
const DemoRows = 200

// DemoDistribution is the synthetic finding mix, in row order.
var DemoDistribution = []FindingCount{
	{Finding: NoFinding, Count: 140},
	{Finding: "Pneumonia", Count: 20},
	{Finding: "Cardiomegaly", Count: 15},
	{Finding: "Effusion", Count: 12},
	{Finding: "Nodule", Count: 8},
	{Finding: "Atelectasis", Count: 5},
}

var demoHeader = []string{
	ImageIndexColumn,
	FindingLabelsColumn,
	"Follow-up #",
	"Patient ID",
	"Patient Age",
	"Patient Gender",
	"View Position",
	"OriginalImage[Width",
	"OriginalImage[Height",
	"OriginalImagePixelSpacing[x",
	"OriginalImagePixelSpacing[y",
}

// DemoTable builds metadata shaped like NIH ChestX-ray14 with DemoDistribution.
func DemoTable() *Table {
	findings := make([]string, 0, DemoRows)
	for _, entry := range DemoDistribution {
		for i := 0; i < entry.Count; i++ {
			findings = append(findings, entry.Finding)
		}
	}

	table := &Table{Header: append([]string(nil), demoHeader...)}
	for i := 0; i < DemoRows; i++ {
		gender := "F"
		if i%2 == 0 {
			gender = "M"
		}
		view := "AP"
		if i%3 == 0 {
			view = "PA"
		}
		values := []string{
			fmt.Sprintf("%08d_000.png", i+1),
			findings[i],
			fmt.Sprint(i % 6),
			fmt.Sprint(100000 + i),
			fmt.Sprint(20 + (i*37)%60),
			gender,
			view,
			"1024",
			"1024",
			"0.2",
			"0.2",
		}
		fields := make(map[string]string, len(demoHeader))
		for col, name := range demoHeader {
			fields[name] = values[col]
		}
		table.Records = append(table.Records, Record{
			ImageIndex:    values[0],
			FindingLabels: values[1],
			Fields:        fields,
		})
	}
	return table
}
