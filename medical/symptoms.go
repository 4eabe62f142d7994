package medical

// symptomIndex maps each canonical symptom to its position in the feature
// vector fed to the classifier. The order matches the training data and must
// not change.
var symptomIndex = map[string]int{
	"itching":                         0,
	"skin_rash":                       1,
	"nodal_skin_eruptions":            2,
	"continuous_sneezing":             3,
	"shivering":                       4,
	"chills":                          5,
	"joint_pain":                      6,
	"stomach_pain":                    7,
	"acidity":                         8,
	"ulcers_on_tongue":                9,
	"muscle_wasting":                  10,
	"vomiting":                        11,
	"burning_micturition":             12,
	"spotting_urination":              13,
	"fatigue":                         14,
	"weight_gain":                     15,
	"anxiety":                         16,
	"cold_hands_and_feets":            17,
	"mood_swings":                     18,
	"weight_loss":                     19,
	"restlessness":                    20,
	"lethargy":                        21,
	"patches_in_throat":               22,
	"irregular_sugar_level":           23,
	"cough":                           24,
	"high_fever":                      25,
	"sunken_eyes":                     26,
	"breathlessness":                  27,
	"sweating":                        28,
	"dehydration":                     29,
	"indigestion":                     30,
	"headache":                        31,
	"yellowish_skin":                  32,
	"dark_urine":                      33,
	"nausea":                          34,
	"loss_of_appetite":                35,
	"pain_behind_the_eyes":            36,
	"back_pain":                       37,
	"constipation":                    38,
	"abdominal_pain":                  39,
	"diarrhoea":                       40,
	"mild_fever":                      41,
	"yellow_urine":                    42,
	"yellowing_of_eyes":               43,
	"acute_liver_failure":             44,
	"fluid_overload":                  45,
	"swelling_of_stomach":             46,
	"swelled_lymph_nodes":             47,
	"malaise":                         48,
	"blurred_and_distorted_vision":    49,
	"phlegm":                          50,
	"throat_irritation":               51,
	"redness_of_eyes":                 52,
	"sinus_pressure":                  53,
	"runny_nose":                      54,
	"congestion":                      55,
	"chest_pain":                      56,
	"weakness_in_limbs":               57,
	"fast_heart_rate":                 58,
	"pain_during_bowel_movements":     59,
	"pain_in_anal_region":             60,
	"bloody_stool":                    61,
	"irritation_in_anus":              62,
	"neck_pain":                       63,
	"dizziness":                       64,
	"cramps":                          65,
	"bruising":                        66,
	"obesity":                         67,
	"swollen_legs":                    68,
	"swollen_blood_vessels":           69,
	"puffy_face_and_eyes":             70,
	"enlarged_thyroid":                71,
	"brittle_nails":                   72,
	"swollen_extremeties":             73,
	"excessive_hunger":                74,
	"extra_marital_contacts":          75,
	"drying_and_tingling_lips":        76,
	"slurred_speech":                  77,
	"knee_pain":                       78,
	"hip_joint_pain":                  79,
	"muscle_weakness":                 80,
	"stiff_neck":                      81,
	"swelling_joints":                 82,
	"movement_stiffness":              83,
	"spinning_movements":              84,
	"loss_of_balance":                 85,
	"unsteadiness":                    86,
	"weakness_of_one_body_side":       87,
	"loss_of_smell":                   88,
	"bladder_discomfort":              89,
	"foul_smell_of_urine":             90,
	"continuous_feel_of_urine":        91,
	"passage_of_gases":                92,
	"internal_itching":                93,
	"toxic_look_(typhos)":             94,
	"depression":                      95,
	"irritability":                    96,
	"muscle_pain":                     97,
	"altered_sensorium":               98,
	"red_spots_over_body":             99,
	"belly_pain":                      100,
	"abnormal_menstruation":           101,
	"dischromic_patches":              102,
	"watering_from_eyes":              103,
	"increased_appetite":              104,
	"polyuria":                        105,
	"family_history":                  106,
	"mucoid_sputum":                   107,
	"rusty_sputum":                    108,
	"lack_of_concentration":           109,
	"visual_disturbances":             110,
	"receiving_blood_transfusion":     111,
	"receiving_unsterile_injections":  112,
	"coma":                            113,
	"stomach_bleeding":                114,
	"distention_of_abdomen":           115,
	"history_of_alcohol_consumption":  116,
	"fluid_overload_1":                117,
	"blood_in_sputum":                 118,
	"prominent_veins_on_calf":         119,
	"palpitations":                    120,
	"painful_walking":                 121,
	"pus_filled_pimples":              122,
	"blackheads":                      123,
	"scurring":                        124,
	"skin_peeling":                    125,
	"silver_like_dusting":             126,
	"small_dents_in_nails":            127,
	"inflammatory_nails":              128,
	"blister":                         129,
	"red_sore_around_nose":            130,
	"yellow_crust_ooze":               131,
}

// diseaseLabels maps the classifier's label index to the disease name used in
// the lookup tables.
var diseaseLabels = map[int]string{
	0:  "(vertigo) Paroymsal  Positional Vertigo",
	1:  "AIDS",
	2:  "Acne",
	3:  "Alcoholic hepatitis",
	4:  "Allergy",
	5:  "Arthritis",
	6:  "Bronchial Asthma",
	7:  "Cervical spondylosis",
	8:  "Chicken pox",
	9:  "Chronic cholestasis",
	10: "Common Cold",
	11: "Dengue",
	12: "Diabetes ",
	13: "Dimorphic hemmorhoids(piles)",
	14: "Drug Reaction",
	15: "Fungal infection",
	16: "GERD",
	17: "Gastroenteritis",
	18: "Heart attack",
	19: "Hepatitis B",
	20: "Hepatitis C",
	21: "Hepatitis D",
	22: "Hepatitis E",
	23: "Hypertension ",
	24: "Hyperthyroidism",
	25: "Hypoglycemia",
	26: "Hypothyroidism",
	27: "Impetigo",
	28: "Jaundice",
	29: "Malaria",
	30: "Migraine",
	31: "Osteoarthristis",
	32: "Paralysis (brain hemorrhage)",
	33: "Peptic ulcer diseae",
	34: "Pneumonia",
	35: "Psoriasis",
	36: "Tuberculosis",
	37: "Typhoid",
	38: "Urinary tract infection",
	39: "Varicose veins",
	40: "hepatitis A",
}

// symptomSynonyms maps common phrasings, multi-word phrases included, to
// canonical symptom names.
var symptomSynonyms = map[string]string{
	"chest pain":          "chest_pain",
	"joint pain":          "joint_pain",
	"stomach pain":        "stomach_pain",
	"belly pain":          "belly_pain",
	"back pain":           "back_pain",
	"neck pain":           "neck_pain",
	"knee pain":           "knee_pain",
	"muscle pain":         "muscle_pain",
	"high fever":          "high_fever",
	"mild fever":          "mild_fever",
	"skin rash":           "skin_rash",
	"runny nose":          "runny_nose",
	"stuffy nose":         "congestion",
	"sore throat":         "throat_irritation",
	"stiff neck":          "stiff_neck",
	"dark urine":          "dark_urine",
	"yellow skin":         "yellowish_skin",
	"yellow eyes":         "yellowing_of_eyes",
	"weight loss":         "weight_loss",
	"weight gain":         "weight_gain",
	"loss of appetite":    "loss_of_appetite",
	"loss of balance":     "loss_of_balance",
	"loss of smell":       "loss_of_smell",
	"blurred vision":      "blurred_and_distorted_vision",
	"blurry vision":       "blurred_and_distorted_vision",
	"fast heart rate":     "fast_heart_rate",
	"racing heart":        "fast_heart_rate",
	"shortness of breath": "breathlessness",
	"fever":               "high_fever",
	"temperature":         "high_fever",
	"headache":            "headache",
	"migraine":            "headache",
	"tired":               "fatigue",
	"tiredness":           "fatigue",
	"exhausted":           "fatigue",
	"exhaustion":          "fatigue",
	"nauseous":            "nausea",
	"queasy":              "nausea",
	"dizzy":               "dizziness",
	"vertigo":             "dizziness",
	"sneezing":            "continuous_sneezing",
	"coughing":            "cough",
	"vomit":               "vomiting",
	"vomited":             "vomiting",
	"itchy":               "itching",
	"itch":                "itching",
	"rash":                "skin_rash",
	"sweaty":              "sweating",
	"breathless":          "breathlessness",
	"wheezing":            "breathlessness",
	"constipated":         "constipation",
	"diarrhea":            "diarrhoea",
	"anxious":             "anxiety",
	"depressed":           "depression",
	"thirsty":             "dehydration",
	"heartburn":           "acidity",
	"palpitation":         "palpitations",
}
