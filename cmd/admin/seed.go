package main

import "github.com/zatekoja/carepoint/internal/domain/entities"

// seedActor is recorded as created_by on catalogue records
const seedActor = "seed@carepoint.local"

type seedBatch struct {
	entity  string
	records []map[string]any
}

func seedCatalogue() []seedBatch {
	return []seedBatch{
		{entities.EntityHospital, []map[string]any{
			{"name": "Lagos University Teaching Hospital", "city": "Lagos", "specialties": []any{"cardiology", "oncology", "emergency"}, "has_emergency": true, "verification_status": "verified"},
			{"name": "National Hospital Abuja", "city": "Abuja", "specialties": []any{"neurology", "orthopaedics", "emergency"}, "has_emergency": true, "verification_status": "verified"},
			{"name": "St. Nicholas Hospital", "city": "Lagos", "specialties": []any{"nephrology", "paediatrics"}, "has_emergency": false, "verification_status": "verified"},
		}},
		{entities.EntityDoctor, []map[string]any{
			{"full_name": "Dr. Amaka Obi", "specialization": "Cardiology", "hospital_name": "Lagos University Teaching Hospital", "city": "Lagos", "consultation_fee": 15000, "rating": 4.8, "verification_status": "verified"},
			{"full_name": "Dr. Tunde Bakare", "specialization": "General Practice", "hospital_name": "St. Nicholas Hospital", "city": "Lagos", "consultation_fee": 8000, "rating": 4.5, "verification_status": "verified"},
			{"full_name": "Dr. Hauwa Sani", "specialization": "Paediatrics", "hospital_name": "National Hospital Abuja", "city": "Abuja", "consultation_fee": 10000, "rating": 4.7, "verification_status": "verified"},
		}},
		{entities.EntityLabPartner, []map[string]any{
			{"name": "Clina-Lancet Laboratories", "city": "Lagos", "home_collection": true, "verification_status": "verified"},
			{"name": "Synlab Abuja", "city": "Abuja", "home_collection": false, "verification_status": "verified"},
		}},
		{entities.EntityLabTest, []map[string]any{
			{"name": "Full Blood Count", "category": "Haematology", "price": 5000, "description": "Red and white cell counts, haemoglobin and platelets", "turnaround_hours": 24},
			{"name": "Lipid Profile", "category": "Chemistry", "price": 9000, "description": "Total cholesterol, HDL, LDL and triglycerides", "requires_fasting": true, "turnaround_hours": 24},
			{"name": "Malaria Parasite Test", "category": "Parasitology", "price": 2500, "description": "Microscopy for malaria parasites", "turnaround_hours": 6},
		}},
		{entities.EntityMedicine, []map[string]any{
			{"name": "Paracetamol 500mg", "generic_name": "paracetamol", "category": "Analgesic", "manufacturer": "Emzor", "price": 500, "requires_prescription": false, "in_stock": true},
			{"name": "Amoxicillin 500mg", "generic_name": "amoxicillin", "category": "Antibiotic", "manufacturer": "Fidson", "price": 2500, "requires_prescription": true, "in_stock": true},
			{"name": "Artemether/Lumefantrine 20/120mg", "generic_name": "artemether-lumefantrine", "category": "Antimalarial", "manufacturer": "Novartis", "price": 3000, "requires_prescription": false, "in_stock": true},
		}},
		{entities.EntityArticle, []map[string]any{
			{"title": "Knowing the signs of a heart attack", "content": "Chest pain, shortness of breath and pain spreading to the arm or jaw need urgent care.", "category": "Heart Health", "tags": []any{"cardiology", "emergency"}},
			{"title": "Preventing malaria at home", "content": "Sleep under treated nets, clear standing water and seek testing for any fever.", "category": "Prevention", "tags": []any{"malaria", "prevention"}},
		}},
	}
}
